// Package client is the programmatic chat panel: it keeps the thread list,
// unread badges and active transcript in sync over the HTTP API and the
// realtime channel, mirroring what the web chat widget does.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/learnhub/learnhub-api/logging"
	"github.com/learnhub/learnhub-api/models"
	"github.com/learnhub/learnhub-api/realtime"
)

// openingMessage is the canned first message a student sends to start a chat
// with a course's instructor.
const openingMessage = "Hello, I would like to start a chat regarding the course."

// Panel is one user's view of their chats. All state mutations go through
// the HTTP API first; pushed events only accelerate what the next fetch
// would have shown.
type Panel struct {
	baseURL string
	token   string
	userID  string
	httpc   *http.Client
	log     *zap.SugaredLogger

	mu       sync.Mutex
	chats    []models.ChatResponse
	messages []models.MessageResponse
	unread   map[string]int
	active   string
	conn     *websocket.Conn
}

// New creates a panel for the given user. The token is the bearer token
// issued by the auth endpoint.
func New(baseURL, token, userID string) *Panel {
	return &Panel{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		userID:  userID,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		log:     logging.New(),
		unread:  make(map[string]int),
	}
}

// Open loads the thread list and seeds the unread badges. A badge starts at
// one when the thread's last message is unread and addressed to the viewer,
// the same heuristic the web widget uses before a thread is opened. A failed
// fetch leaves prior state intact.
func (p *Panel) Open(ctx context.Context) error {
	var env struct {
		Data []models.ChatResponse `json:"data"`
	}
	if err := p.get(ctx, "/api/v1/chat/chats", &env); err != nil {
		p.log.Errorw("failed to fetch chats", "error", err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.chats = env.Data
	for _, chat := range env.Data {
		id := chat.ID.Hex()
		if _, ok := p.unread[id]; ok {
			continue
		}
		if chat.LastMessage != nil && !chat.LastMessage.Read && chat.LastMessage.Receiver.ID.Hex() == p.userID {
			p.unread[id] = 1
		} else {
			p.unread[id] = 0
		}
	}
	return nil
}

// Connect dials the realtime channel and starts dispatching pushed events.
// The userId connection parameter registers presence immediately; a register
// frame is sent as well, matching the original handshake.
func (p *Panel) Connect(ctx context.Context) error {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"userId": {p.userID}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		p.log.Errorw("failed to connect realtime channel", "error", err)
		return err
	}

	reg, _ := json.Marshal(p.userID)
	if err := conn.WriteJSON(realtime.Event{Event: realtime.EventRegister, Data: reg}); err != nil {
		conn.Close()
		return err
	}

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()

	go p.readLoop(ctx, conn)
	return nil
}

// Close tears down the realtime connection. Pending unread state survives;
// it is server-derived and will be rebuilt on the next Open.
func (p *Panel) Close() error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (p *Panel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var ev realtime.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		if ev.Event != realtime.EventNewMessage {
			continue
		}
		var msg models.MessageResponse
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			p.log.Warnw("ignoring malformed push payload", "error", err)
			continue
		}
		p.dispatch(ctx, msg)
	}
}

// dispatch applies one pushed message: appended to the transcript and
// immediately marked read when its chat is the active thread, otherwise
// counted on that thread's badge without fetching.
func (p *Panel) dispatch(ctx context.Context, msg models.MessageResponse) {
	chatID := msg.Chat.Hex()

	p.mu.Lock()
	if p.active != "" && chatID == p.active {
		p.messages = append(p.messages, msg)
		p.mu.Unlock()
		if err := p.markRead(ctx, []string{msg.ID.Hex()}); err != nil {
			p.log.Warnw("failed to mark pushed message as read", "error", err)
		}
		return
	}
	p.unread[chatID]++
	p.mu.Unlock()
}

// SelectThread makes chatID the active thread and loads its transcript. The
// server marks the viewer's unread messages read as a side effect of the
// fetch, so the badge drops to zero.
func (p *Panel) SelectThread(ctx context.Context, chatID string) ([]models.MessageResponse, error) {
	var env struct {
		Data []models.MessageResponse `json:"data"`
	}
	if err := p.get(ctx, "/api/v1/chat/messages/"+chatID, &env); err != nil {
		p.log.Errorw("failed to fetch messages", "chatId", chatID, "error", err)
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = chatID
	p.messages = env.Data
	p.unread[chatID] = 0
	return append([]models.MessageResponse(nil), env.Data...), nil
}

// Send posts a message to the active thread and appends the acknowledged
// copy optimistically; the sender never waits for their own push echo.
func (p *Panel) Send(ctx context.Context, content string) (*models.MessageResponse, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("message content cannot be empty")
	}

	p.mu.Lock()
	chat, ok := p.activeChat()
	p.mu.Unlock()
	if !ok {
		return nil, errors.New("no active thread selected")
	}

	receiver := chat.Instructor
	if p.userID == chat.Instructor.ID.Hex() {
		receiver = chat.Student
	}

	var resp models.SendMessageResponse
	err := p.post(ctx, "/api/v1/chat/send", models.SendMessageRequest{
		CourseID:   chat.Course.ID.Hex(),
		ReceiverID: receiver.ID.Hex(),
		Content:    content,
	}, &resp)
	if err != nil {
		p.log.Errorw("failed to send message", "error", err)
		return nil, err
	}

	p.mu.Lock()
	p.messages = append(p.messages, resp.Data)
	p.mu.Unlock()
	return &resp.Data, nil
}

// StartChat opens a conversation with a course's instructor by sending the
// canned opener; the server creates the chat as a side effect and the panel
// adopts it as the active thread.
func (p *Panel) StartChat(ctx context.Context, courseID, instructorID string) (*models.ChatResponse, error) {
	var resp models.SendMessageResponse
	err := p.post(ctx, "/api/v1/chat/send", models.SendMessageRequest{
		CourseID:   courseID,
		ReceiverID: instructorID,
		Content:    openingMessage,
	}, &resp)
	if err != nil {
		p.log.Errorw("failed to start chat", "courseId", courseID, "error", err)
		return nil, err
	}

	p.mu.Lock()
	p.active = resp.Chat.ID.Hex()
	p.messages = []models.MessageResponse{resp.Data}
	p.unread[p.active] = 0
	p.adoptChat(resp.Chat)
	p.mu.Unlock()
	return &resp.Chat, nil
}

// adoptChat inserts or replaces the thread in the local list. Caller holds mu.
func (p *Panel) adoptChat(chat models.ChatResponse) {
	for i, existing := range p.chats {
		if existing.ID == chat.ID {
			p.chats[i] = chat
			return
		}
	}
	p.chats = append([]models.ChatResponse{chat}, p.chats...)
}

func (p *Panel) activeChat() (models.ChatResponse, bool) {
	for _, chat := range p.chats {
		if chat.ID.Hex() == p.active {
			return chat, true
		}
	}
	return models.ChatResponse{}, false
}

func (p *Panel) markRead(ctx context.Context, ids []string) error {
	var resp struct {
		Data models.MarkReadResponse `json:"data"`
	}
	return p.post(ctx, "/api/v1/chat/mark-read", models.MarkReadRequest{MessageIDs: ids}, &resp)
}

// Chats returns a copy of the thread list as last fetched.
func (p *Panel) Chats() []models.ChatResponse {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ChatResponse(nil), p.chats...)
}

// Messages returns a copy of the active thread's transcript.
func (p *Panel) Messages() []models.MessageResponse {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.MessageResponse(nil), p.messages...)
}

// Unread returns the badge count for one thread.
func (p *Panel) Unread(chatID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unread[chatID]
}

// TotalUnread sums every badge, the number shown on the panel trigger button.
func (p *Panel) TotalUnread() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.unread {
		total += n
	}
	return total
}

// ActiveThread returns the id of the currently selected thread, if any.
func (p *Panel) ActiveThread() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Panel) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return err
	}
	return p.do(req, out)
}

func (p *Panel) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req, out)
}

func (p *Panel) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+p.token)
	res, err := p.httpc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var er models.ErrorResponse
		if err := json.NewDecoder(res.Body).Decode(&er); err == nil && er.Message != "" {
			return fmt.Errorf("%s: %s", res.Status, er.Message)
		}
		return fmt.Errorf("unexpected status %s", res.Status)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
