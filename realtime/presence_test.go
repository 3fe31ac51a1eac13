package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	writes []interface{}
	closed bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.writes = append(f.writes, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{}

	reg.Register("alice", conn)

	got, ok := reg.Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, conn, got)

	_, ok = reg.Lookup("bob")
	assert.False(t, ok)
}

func TestRegistry_ReconnectSupersedes(t *testing.T) {
	reg := NewRegistry()
	first := &fakeConn{}
	second := &fakeConn{}

	reg.Register("alice", first)
	reg.Register("alice", second)

	got, ok := reg.Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_StaleUnregisterKeepsFreshConnection(t *testing.T) {
	reg := NewRegistry()
	stale := &fakeConn{}
	fresh := &fakeConn{}

	reg.Register("alice", stale)
	reg.Register("alice", fresh)

	// the old connection's deferred cleanup fires after the reconnect
	reg.Unregister(stale)

	got, ok := reg.Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, fresh, got)

	reg.Unregister(fresh)
	_, ok = reg.Lookup("alice")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_UnregisterUnknownConnIsNoop(t *testing.T) {
	reg := NewRegistry()
	reg.Register("alice", &fakeConn{})

	reg.Unregister(&fakeConn{})

	assert.Equal(t, 1, reg.Len())
}
