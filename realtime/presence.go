package realtime

import "sync"

// Conn is the write surface the registry tracks for a connected user.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Registry maps a user id to their most recent live connection. It holds one
// entry per user: a reconnect (second browser tab, page reload) supersedes
// the previous connection. State is process-local and rebuilt from nothing on
// restart; nothing here is persisted.
type Registry struct {
	mu    sync.Mutex
	conns map[string]Conn
}

// NewRegistry creates an empty presence registry
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Conn),
	}
}

// Register records conn as the live connection for userID, replacing any
// previous entry for that user.
func (r *Registry) Register(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[userID] = conn
}

// Unregister removes every entry still pointing at conn. An entry already
// replaced by a newer connection is left alone, so a stale disconnect racing
// a reconnect cannot evict the fresh session.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, c := range r.conns {
		if c == conn {
			delete(r.conns, userID)
		}
	}
}

// Lookup returns the live connection for userID, if any.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Len reports how many users are currently connected.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
