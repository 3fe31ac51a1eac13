package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/learnhub/learnhub-api/models"
)

func newTestGateway(t *testing.T) (*Registry, *Gateway, *httptest.Server) {
	reg := NewRegistry()
	g := NewGateway(reg)
	srv := httptest.NewServer(http.HandlerFunc(g.HandleSocket))
	t.Cleanup(srv.Close)
	return reg, g, srv
}

func dialSocket(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if userID != "" {
		url += "?userId=" + userID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGateway_PushToConnectedUser(t *testing.T) {
	reg, g, srv := newTestGateway(t)

	conn := dialSocket(t, srv, "alice")
	assert.Eventually(t, func() bool {
		_, ok := reg.Lookup("alice")
		return ok
	}, time.Second, 10*time.Millisecond)

	msg := models.MessageResponse{
		ID:      primitive.NewObjectID(),
		Content: "quiz is graded",
	}
	g.PushNewMessage("alice", msg)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var ev Event
	assert.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventNewMessage, ev.Event)

	var got models.MessageResponse
	assert.NoError(t, json.Unmarshal(ev.Data, &got))
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "quiz is graded", got.Content)
}

func TestGateway_PushToOfflineUserIsDropped(t *testing.T) {
	reg, g, srv := newTestGateway(t)

	conn := dialSocket(t, srv, "alice")
	assert.Eventually(t, func() bool {
		_, ok := reg.Lookup("alice")
		return ok
	}, time.Second, 10*time.Millisecond)

	// nobody is registered as bob; the push must be a silent no-op
	g.PushNewMessage("bob", models.MessageResponse{Content: "lost"})

	// alice's channel stays quiet
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var ev Event
	assert.Error(t, conn.ReadJSON(&ev))
}

func TestGateway_RegisterEventBindsUser(t *testing.T) {
	reg, g, srv := newTestGateway(t)

	conn := dialSocket(t, srv, "")
	_, ok := reg.Lookup("carol")
	assert.False(t, ok)

	payload, _ := json.Marshal("carol")
	assert.NoError(t, conn.WriteJSON(Event{Event: EventRegister, Data: payload}))
	assert.Eventually(t, func() bool {
		_, ok := reg.Lookup("carol")
		return ok
	}, time.Second, 10*time.Millisecond)

	g.PushNewMessage("carol", models.MessageResponse{Content: "welcome"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var ev Event
	assert.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventNewMessage, ev.Event)
}

func TestGateway_DisconnectUnregisters(t *testing.T) {
	reg, _, srv := newTestGateway(t)

	conn := dialSocket(t, srv, "alice")
	assert.Eventually(t, func() bool {
		return reg.Len() == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool {
		return reg.Len() == 0
	}, time.Second, 10*time.Millisecond)
}
