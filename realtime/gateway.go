package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/learnhub/learnhub-api/models"
)

// Event is the frame exchanged over the realtime channel. The server sends
// "newMessage" events; clients may send "register" events with their user id.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

const (
	// EventRegister is sent by a client to bind its user id to the connection
	EventRegister = "register"
	// EventNewMessage is pushed to a receiver when a message is committed
	EventNewMessage = "newMessage"
)

// Gateway owns the websocket endpoint and pushes committed messages to the
// receiver's live connection. Push is an accelerant only: a miss or write
// failure is logged and dropped, the HTTP fetch path remains the source of
// truth.
type Gateway struct {
	registry *Registry
	upgrader websocket.Upgrader
}

// NewGateway creates a gateway backed by the given presence registry
func NewGateway(registry *Registry) *Gateway {
	return &Gateway{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Adjust CORS as needed, e.g., check r.Header.Get("Origin")
			},
		},
	}
}

// wsConn serializes writes; gorilla connections do not allow concurrent writers.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// HandleSocket upgrades the connection and runs its read loop. The client
// identifies itself with a userId query parameter and may re-register at any
// time with a register event. The loop exits on the first read error, which
// covers both clean close and dropped connections, and unregisters the
// connection on the way out.
func (g *Gateway) HandleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().With(err).Warn("websocket upgrade failed")
		return
	}

	c := &wsConn{conn: conn}
	if userID := r.URL.Query().Get("userId"); userID != "" {
		g.registry.Register(userID, c)
		zap.S().Debugw("user connected", "userId", userID)
	}

	defer func() {
		g.registry.Unregister(c)
		c.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			zap.S().Debugw("ignoring malformed frame", "error", err)
			continue
		}

		if ev.Event == EventRegister {
			var userID string
			if err := json.Unmarshal(ev.Data, &userID); err != nil || userID == "" {
				continue
			}
			g.registry.Register(userID, c)
			zap.S().Debugw("user registered", "userId", userID)
		}
	}
}

// PushNewMessage delivers a committed message to the receiver if they are
// connected. Best effort: an offline receiver or a failed write is not
// retried, the message is already persisted and will be seen on the next
// fetch.
func (g *Gateway) PushNewMessage(userID string, message models.MessageResponse) {
	conn, ok := g.registry.Lookup(userID)
	if !ok {
		return
	}
	if err := conn.WriteJSON(Event{Event: EventNewMessage, Data: mustMarshal(message)}); err != nil {
		zap.S().Warnw("failed to push message", "userId", userID, "error", err)
	}
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		zap.S().With(err).Error("failed to marshal push payload")
		return json.RawMessage(`null`)
	}
	return b
}
