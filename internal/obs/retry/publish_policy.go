package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// PublishPolicy bounds the best-effort broadcast publish. The budget is
// deliberately short: the caller swallows the final error and the record is
// already durable, so a long retry tail would only stall the write path.
func PublishPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "bus_publish",
		Attempts: 3,
		Backoff:  ExpoJitter{Base: 100 * time.Millisecond, Max: time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("bus publish retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("bus publish retries exhausted", zap.Error(err))
			}
		},
	}
}
