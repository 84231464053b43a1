package hub

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testConn struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	closed  bool
}

func (c *testConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *testConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *testConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestRegistrySendToAllDevices(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	tab := &testConn{}
	phone := &testConn{}
	r.Register("u1", tab)
	r.Register("u1", phone)

	require.True(t, r.SendIfPresent("u1", []byte("hi")))
	require.Equal(t, 1, tab.sentCount())
	require.Equal(t, 1, phone.sentCount())
	require.Equal(t, 2, r.Len())
}

func TestRegistryDropsFailedConn(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	bad := &testConn{sendErr: errors.New("broken pipe")}
	good := &testConn{}
	r.Register("u1", bad)
	r.Register("u1", good)

	require.True(t, r.SendIfPresent("u1", []byte("hi")))
	require.Equal(t, 1, good.sentCount())
	require.True(t, bad.closed)
	require.Equal(t, 1, r.Len())

	// Only the dead handle is gone.
	require.True(t, r.Present("u1"))
}

func TestRegistryAbsentRecipient(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.False(t, r.Present("nobody"))
	require.False(t, r.SendIfPresent("nobody", []byte("hi")))
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	c := &testConn{}
	r.Register("u1", c)
	r.Unregister("u1", c)
	r.Unregister("u1", c)
	require.False(t, r.Present("u1"))
	require.Equal(t, 0, r.Len())
}

func TestRegistryDrainClosesEverything(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	a := &testConn{}
	b := &testConn{}
	r.Register("u1", a)
	r.Register("u2", b)

	r.Drain()
	require.True(t, a.closed)
	require.True(t, b.closed)
	require.Equal(t, 0, r.Len())
	require.False(t, r.SendIfPresent("u1", []byte("hi")))
}
