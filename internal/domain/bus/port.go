package bus

import "context"

type Kind string

const (
	KindCreated       Kind = "created"
	KindStatusChanged Kind = "status_changed"
)

// Event is the transient fanout message broadcast to every replica.
// NotificationID is nil for the aggregate "mark all read" signal, which
// tells clients to re-pull instead of naming a single record. Events are
// never persisted: a lost event degrades to the next Query API pull.
type Event struct {
	RecipientID    string `json:"recipient_id"`
	NotificationID *int64 `json:"notification_id"`
	Kind           Kind   `json:"kind"`
}

// Publisher is fire-and-forget, at-most-once. Implementations key the
// underlying transport by RecipientID so per-recipient ordering follows the
// store's write order.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type Handler func(ctx context.Context, ev Event) error

// Subscriber delivers every event on the logical topic to this process.
// Replicas do not compete for events; each one must observe the full stream
// because any of them may hold the target connection.
type Subscriber interface {
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}
