package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/learnhub/learnhub-api/api"
	"github.com/learnhub/learnhub-api/api/scheduler"
	"github.com/learnhub/learnhub-api/config"
	"github.com/learnhub/learnhub-api/databases"
	"github.com/learnhub/learnhub-api/models"
	"github.com/learnhub/learnhub-api/realtime"
)

// App stores the router, db connection and realtime state, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Presence  *realtime.Registry
	Gateway   *realtime.Gateway
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	ch := Chat{
		ChatDB:    databases.NewChatDatabase(a.dbHelper),
		MessageDB: databases.NewMessageDatabase(a.dbHelper),
		CourseDB:  databases.NewCourseDatabase(a.dbHelper),
		UserDB:    databases.NewUserDatabase(a.dbHelper),
		Notifier:  a.Gateway,
	}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	// realtime channel; auth is the userId connection parameter, identity is
	// only used for push addressing
	r.HandleFunc("/ws", a.Gateway.HandleSocket)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	apiCreate.Handle("/auth/token", http.HandlerFunc(m.CreateToken)).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/chat/chats", api.Middleware(http.HandlerFunc(ch.ChatsHandler))).Methods("GET")
	apiCreate.Handle("/chat/messages/{chat_id}", api.Middleware(http.HandlerFunc(ch.MessagesHandler))).Methods("GET")
	apiCreate.Handle("/chat/send", api.Middleware(http.HandlerFunc(ch.SendHandler))).Methods("POST")
	apiCreate.Handle("/chat/mark-read", api.Middleware(http.HandlerFunc(ch.MarkReadHandler))).Methods("POST")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("learnhub-api has connected to the database")

	// realtime layer: presence registry lives for the life of the process
	a.Presence = realtime.NewRegistry()
	a.Gateway = realtime.NewGateway(a.Presence)

	// periodic store/presence stats for ops
	a.Scheduler = scheduler.New(
		databases.NewChatDatabase(a.dbHelper),
		databases.NewMessageDatabase(a.dbHelper),
		a.Presence,
	)
	a.Scheduler.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
