package notification

import "errors"

var (
	// ErrNotFound covers both "record absent" and "record not owned by the
	// caller" so that ownership probes cannot distinguish the two.
	ErrNotFound = errors.New("notification not found")

	// ErrInvalidTransition means a status update would move the lifecycle
	// backwards (e.g. reading an archived record).
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnavailable wraps transient store/bus failures surfaced to callers.
	ErrUnavailable = errors.New("temporarily unavailable")
)
