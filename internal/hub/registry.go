package hub

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Conn is one live push connection. Send must be bounded by a write
// deadline inside the implementation so one stalled client cannot hold up
// deliveries to others; a Send on a closed connection must return an error,
// never panic.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

var (
	mConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_connections",
		Help: "Live push connections registered on this replica.",
	})
	mPushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_pushes_total",
		Help: "Payloads written to at least one connection.",
	})
	mPushDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_push_drops_total",
		Help: "Connections dropped after a failed write.",
	})
)

// Registry maps recipient ids to the connections this replica holds for
// them. It is strictly process-local and rebuilt from nothing on restart;
// clients repopulate it by reconnecting.
type Registry struct {
	mu    sync.RWMutex
	conns map[string][]Conn
	log   *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		conns: make(map[string][]Conn),
		log:   log.With(zap.String("component", "hub.registry")),
	}
}

// Register retains prior handles for the same recipient: one user may hold
// several tabs or devices and sends go to all of them.
func (r *Registry) Register(recipientID string, c Conn) {
	r.mu.Lock()
	r.conns[recipientID] = append(r.conns[recipientID], c)
	r.mu.Unlock()
	mConnections.Inc()
	r.log.Debug("registered", zap.String("recipient_id", recipientID))
}

// Unregister removes exactly that handle. It is a no-op when the handle is
// already gone, which absorbs the race between explicit disconnect and
// send-failure cleanup.
func (r *Registry) Unregister(recipientID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(recipientID, c)
}

func (r *Registry) removeLocked(recipientID string, c Conn) {
	handles := r.conns[recipientID]
	for i, h := range handles {
		if h == c {
			handles = append(handles[:i], handles[i+1:]...)
			if len(handles) == 0 {
				delete(r.conns, recipientID)
			} else {
				r.conns[recipientID] = handles
			}
			mConnections.Dec()
			return
		}
	}
}

// Present reports whether this replica holds at least one connection for
// the recipient. Used by the dispatcher to skip loading payloads for
// recipients connected elsewhere.
func (r *Registry) Present(recipientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[recipientID]) > 0
}

// SendIfPresent writes the payload to every handle held for the recipient.
// A failed write unregisters and closes that specific handle and the
// iteration continues; the return value says whether at least one handle
// took the payload.
func (r *Registry) SendIfPresent(recipientID string, payload []byte) bool {
	r.mu.RLock()
	handles := make([]Conn, len(r.conns[recipientID]))
	copy(handles, r.conns[recipientID])
	r.mu.RUnlock()

	delivered := false
	for _, h := range handles {
		if err := h.Send(payload); err != nil {
			r.log.Debug("send failed; dropping connection",
				zap.String("recipient_id", recipientID), zap.Error(err))
			r.mu.Lock()
			r.removeLocked(recipientID, h)
			r.mu.Unlock()
			_ = h.Close()
			mPushDrops.Inc()
			continue
		}
		delivered = true
	}
	if delivered {
		mPushes.Inc()
	}
	return delivered
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, hs := range r.conns {
		n += len(hs)
	}
	return n
}

// Drain closes and forgets every connection. Called once at shutdown.
func (r *Registry) Drain() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string][]Conn)
	r.mu.Unlock()

	for _, hs := range conns {
		for _, h := range hs {
			_ = h.Close()
			mConnections.Dec()
		}
	}
}
