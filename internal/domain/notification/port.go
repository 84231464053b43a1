package notification

import (
	"context"
	"time"
)

// Repo is the persistence port for notification records. Implementations
// must honor a transaction injected into the context by a Transactor.
type Repo interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, recipientID string, id int64) (*Notification, error)
	// GetForUpdate locks the row for the duration of the surrounding
	// transaction. Outside a transaction it behaves like GetByID.
	GetForUpdate(ctx context.Context, recipientID string, id int64) (*Notification, error)
	// List returns up to limit records owned by recipientID, ordered by
	// (created_at DESC, id DESC), starting strictly after cur when non-nil.
	List(ctx context.Context, recipientID string, limit int, cur *Cursor) ([]*Notification, error)
	SetStatus(ctx context.Context, id int64, st Status, now time.Time) (time.Time, error)
	// MarkAllRead transitions every unread record of the recipient to read
	// and returns the number of rows affected.
	MarkAllRead(ctx context.Context, recipientID string, now time.Time) (int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
}

// Transactor runs a function inside a single database transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
