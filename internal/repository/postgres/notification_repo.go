package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/events2go/notify-hub/internal/domain/notification"
)

var _ notification.Repo = (*NotificationRepo)(nil)

type NotificationRepo struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepo { return &NotificationRepo{db: db} }

const notifColumns = `id, recipient_id, actor_id, title, body, metadata, channel, status, created_at, updated_at`

const (
	qNotifInsert = `
INSERT INTO notifications (recipient_id, actor_id, title, body, metadata, channel, status)
VALUES ($1, $2, $3, $4, $5, $6, 'unread')
RETURNING id, status, created_at, updated_at;
`
	qNotifByID = `
SELECT ` + notifColumns + `
FROM notifications
WHERE id = $1 AND recipient_id = $2`

	qNotifListHead = `
SELECT ` + notifColumns + `
FROM notifications
WHERE recipient_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;
`
	qNotifListAfter = `
SELECT ` + notifColumns + `
FROM notifications
WHERE recipient_id = $1 AND (created_at, id) < ($2, $3)
ORDER BY created_at DESC, id DESC
LIMIT $4;
`
	qNotifSetStatus = `
UPDATE notifications
SET status = $2, updated_at = $3
WHERE id = $1
RETURNING updated_at;
`
	qNotifMarkAllRead = `
UPDATE notifications
SET status = 'read', updated_at = $2
WHERE recipient_id = $1 AND status = 'unread';
`
	qNotifCountUnread = `
SELECT count(*) FROM notifications WHERE recipient_id = $1 AND status = 'unread';
`
)

func (r *NotificationRepo) Create(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if n.Metadata == nil {
		n.Metadata = map[string]any{}
	}
	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qNotifInsert,
		n.RecipientID,
		n.ActorID,
		n.Title,
		n.Body,
		n.Metadata,
		n.Channel,
	).Scan(&n.ID, &n.Status, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepo) GetByID(ctx context.Context, recipientID string, id int64) (*notification.Notification, error) {
	return r.getByID(ctx, recipientID, id, false)
}

func (r *NotificationRepo) GetForUpdate(ctx context.Context, recipientID string, id int64) (*notification.Notification, error) {
	return r.getByID(ctx, recipientID, id, true)
}

func (r *NotificationRepo) getByID(ctx context.Context, recipientID string, id int64, forUpdate bool) (*notification.Notification, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	q := qNotifByID + ";"
	if forUpdate {
		q = qNotifByID + " FOR UPDATE;"
	}

	eq := r.db.execQueryer(ctx)
	var n notification.Notification
	if err := scanNotification(eq.QueryRow(ctx, q, id, recipientID), &n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notification.ErrNotFound
		}
		return nil, fmt.Errorf("query notification: %w", err)
	}
	return &n, nil
}

func (r *NotificationRepo) List(ctx context.Context, recipientID string, limit int, cur *notification.Cursor) ([]*notification.Notification, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	var (
		rows pgx.Rows
		err  error
	)
	if cur == nil {
		rows, err = eq.Query(ctx, qNotifListHead, recipientID, limit)
	} else {
		rows, err = eq.Query(ctx, qNotifListAfter, recipientID, cur.CreatedAt, cur.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*notification.Notification, 0, limit)
	for rows.Next() {
		var n notification.Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		nc := n
		out = append(out, &nc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *NotificationRepo) SetStatus(ctx context.Context, id int64, st notification.Status, now time.Time) (time.Time, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	var updatedAt time.Time
	if err := eq.QueryRow(ctx, qNotifSetStatus, id, st, now).Scan(&updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, notification.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("update status: %w", err)
	}
	return updatedAt, nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID string, now time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	tag, err := eq.Exec(ctx, qNotifMarkAllRead, recipientID, now)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	var n int64
	if err := eq.QueryRow(ctx, qNotifCountUnread, recipientID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func scanNotification(row pgx.Row, n *notification.Notification) error {
	return row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.ActorID,
		&n.Title,
		&n.Body,
		&n.Metadata,
		&n.Channel,
		&n.Status,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
}
