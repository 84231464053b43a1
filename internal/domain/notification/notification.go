package notification

import (
	"time"
)

// Status is the lifecycle state of a notification. Transitions only move
// forward: unread -> read, unread|read -> archived.
type Status string

const (
	StatusUnread   Status = "unread"
	StatusRead     Status = "read"
	StatusArchived Status = "archived"
)

// Channel is the delivery class. Only in_app is produced by this service;
// the remaining values are reserved for outbound senders.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Notification is the durable record. Everything except Status and
// UpdatedAt is immutable after creation.
type Notification struct {
	ID          int64          `json:"id"`
	RecipientID string         `json:"recipient_id"`
	ActorID     *string        `json:"actor_id,omitempty"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Metadata    map[string]any `json:"metadata"`
	Channel     Channel        `json:"channel"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CanTransition reports whether moving from s to next is a forward move in
// the lifecycle. Same-state "transitions" are not forward moves; callers
// treat them as idempotent no-ops.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusUnread:
		return next == StatusRead || next == StatusArchived
	case StatusRead:
		return next == StatusArchived
	default:
		return false
	}
}

func (s Status) Valid() bool {
	return s == StatusUnread || s == StatusRead || s == StatusArchived
}

func (c Channel) Valid() bool {
	return c == ChannelInApp || c == ChannelEmail || c == ChannelSMS || c == ChannelPush
}
