package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/events2go/notify-hub/internal/domain/bus"
	"github.com/events2go/notify-hub/internal/domain/notification"
	"github.com/events2go/notify-hub/internal/obs"
	"github.com/events2go/notify-hub/internal/obs/retry"
)

var (
	ErrInvalidCursor = errors.New("invalid cursor")
	ErrEmptyField    = errors.New("required field is empty")
)

type CreateInput struct {
	RecipientID string
	ActorID     *string
	Title       string
	Body        string
	Metadata    map[string]any
	Channel     notification.Channel
}

type ListResult struct {
	Items      []*notification.Notification
	NextCursor string
}

type Limits struct {
	Default int
	Max     int
}

// Usecase is the single write path for notification records. Every mutation
// persists first and only then broadcasts; the broadcast is best effort and
// its failure never surfaces to the caller.
type Usecase struct {
	log    *zap.Logger
	repo   notification.Repo
	tx     notification.Transactor
	pub    bus.Publisher
	pol    retry.Policy
	limits Limits
	clk    func() time.Time
}

func NewUsecase(log *zap.Logger, repo notification.Repo, tx notification.Transactor, pub bus.Publisher, limits Limits, clk func() time.Time) *Usecase {
	if clk == nil {
		clk = func() time.Time { return time.Now().UTC() }
	}
	if limits.Default <= 0 {
		limits.Default = 20
	}
	if limits.Max <= 0 {
		limits.Max = 100
	}
	return &Usecase{
		log:    log,
		repo:   repo,
		tx:     tx,
		pub:    pub,
		pol:    retry.PublishPolicy(log),
		limits: limits,
		clk:    clk,
	}
}

func (u *Usecase) Create(ctx context.Context, in CreateInput) (*notification.Notification, error) {
	if in.RecipientID == "" || in.Title == "" || in.Body == "" {
		return nil, fmt.Errorf("%w: recipient_id, title and body are required", ErrEmptyField)
	}
	if in.Channel == "" {
		in.Channel = notification.ChannelInApp
	}
	if !in.Channel.Valid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrEmptyField, in.Channel)
	}

	n := &notification.Notification{
		RecipientID: in.RecipientID,
		ActorID:     in.ActorID,
		Title:       in.Title,
		Body:        in.Body,
		Metadata:    in.Metadata,
		Channel:     in.Channel,
	}
	if err := u.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("%w: create: %v", notification.ErrUnavailable, err)
	}

	u.publish(ctx, bus.Event{
		RecipientID:    n.RecipientID,
		NotificationID: &n.ID,
		Kind:           bus.KindCreated,
	})
	return n, nil
}

// MarkRead is idempotent: reading an already-read record succeeds without a
// write and without re-broadcasting.
func (u *Usecase) MarkRead(ctx context.Context, recipientID string, id int64) (*notification.Notification, error) {
	return u.transition(ctx, recipientID, id, notification.StatusRead)
}

// Archive moves a record to its terminal state. Archiving twice is a no-op.
func (u *Usecase) Archive(ctx context.Context, recipientID string, id int64) (*notification.Notification, error) {
	return u.transition(ctx, recipientID, id, notification.StatusArchived)
}

func (u *Usecase) transition(ctx context.Context, recipientID string, id int64, next notification.Status) (*notification.Notification, error) {
	var (
		rec     *notification.Notification
		changed bool
	)
	err := u.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := u.repo.GetForUpdate(ctx, recipientID, id)
		if err != nil {
			return err
		}
		if cur.Status == next {
			rec = cur
			return nil
		}
		if !cur.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s", notification.ErrInvalidTransition, cur.Status, next)
		}
		updatedAt, err := u.repo.SetStatus(ctx, cur.ID, next, u.clk())
		if err != nil {
			return err
		}
		cur.Status = next
		cur.UpdatedAt = updatedAt
		rec = cur
		changed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) || errors.Is(err, notification.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", notification.ErrUnavailable, next, err)
	}

	if changed {
		u.publish(ctx, bus.Event{
			RecipientID:    recipientID,
			NotificationID: &rec.ID,
			Kind:           bus.KindStatusChanged,
		})
	}
	return rec, nil
}

// MarkAllRead transitions every unread record of the recipient in one
// statement and broadcasts a single aggregate event instead of one per row.
func (u *Usecase) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	count, err := u.repo.MarkAllRead(ctx, recipientID, u.clk())
	if err != nil {
		return 0, fmt.Errorf("%w: mark all read: %v", notification.ErrUnavailable, err)
	}
	if count > 0 {
		u.publish(ctx, bus.Event{
			RecipientID: recipientID,
			Kind:        bus.KindStatusChanged,
		})
	}
	return count, nil
}

func (u *Usecase) Get(ctx context.Context, recipientID string, id int64) (*notification.Notification, error) {
	rec, err := u.repo.GetByID(ctx, recipientID, id)
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: get: %v", notification.ErrUnavailable, err)
	}
	return rec, nil
}

func (u *Usecase) List(ctx context.Context, recipientID string, limit int, cursor string) (*ListResult, error) {
	if limit <= 0 {
		limit = u.limits.Default
	}
	if limit > u.limits.Max {
		limit = u.limits.Max
	}

	var cur *notification.Cursor
	if cursor != "" {
		c, err := notification.DecodeCursor(cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		cur = &c
	}

	// One extra row decides whether a next page exists without a second query.
	items, err := u.repo.List(ctx, recipientID, limit+1, cur)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", notification.ErrUnavailable, err)
	}

	res := &ListResult{Items: items}
	if len(items) > limit {
		res.Items = items[:limit]
		last := res.Items[limit-1]
		res.NextCursor = notification.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	return res, nil
}

func (u *Usecase) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	n, err := u.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("%w: unread count: %v", notification.ErrUnavailable, err)
	}
	return n, nil
}

// publish broadcasts with a short retry budget and swallows the final
// error: the record is already durable and disconnected clients reconcile
// through List, so real-time push stays at-most-once.
func (u *Usecase) publish(ctx context.Context, ev bus.Event) {
	err := retry.Do(ctx, func() error { return u.pub.Publish(ctx, ev) }, u.pol)
	if err != nil {
		obs.WithTrace(ctx, u.log).Warn("broadcast publish failed; clients will catch up on pull",
			zap.String("recipient_id", ev.RecipientID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}
