package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/events2go/notify-hub/internal/domain/bus"
)

type BroadcastConfig struct {
	Brokers     []string
	Topic       string
	GroupPrefix string
	Partitions  int
}

var (
	_ bus.Publisher  = (*BroadcastPublisher)(nil)
	_ bus.Subscriber = (*BroadcastSubscriber)(nil)
)

// BroadcastPublisher fans notification events out over a partitioned topic,
// keyed by recipient so one recipient's events never reorder.
type BroadcastPublisher struct {
	p *Producer
}

func NewBroadcastPublisher(cfg BroadcastConfig, logger *zap.Logger) *BroadcastPublisher {
	return &BroadcastPublisher{p: NewProducer(cfg.Brokers, cfg.Topic).WithLogger(logger)}
}

func (b *BroadcastPublisher) Publish(ctx context.Context, ev bus.Event) error {
	return b.p.PublishJSON(ctx, []byte(ev.RecipientID), ev)
}

func (b *BroadcastPublisher) Close() error { return b.p.Close() }

// BroadcastSubscriber joins the topic with a consumer group unique to this
// replica, so every replica receives every event instead of splitting the
// stream. Groups are throwaway: a restarted replica starts a fresh group at
// the latest offset and clients reconcile through the query API.
type BroadcastSubscriber struct {
	c *Consumer
}

func NewBroadcastSubscriber(cfg BroadcastConfig, logger *zap.Logger) *BroadcastSubscriber {
	group := fmt.Sprintf("%s-%s", cfg.GroupPrefix, uuid.NewString())
	return &BroadcastSubscriber{c: NewConsumer(&ConsumerConfig{
		Brokers: cfg.Brokers,
		GroupID: group,
		Topic:   cfg.Topic,
		Logger:  logger,
	})}
}

func (b *BroadcastSubscriber) Subscribe(ctx context.Context, h bus.Handler) error {
	return b.c.Consume(ctx, func(ctx context.Context, key, value []byte) error {
		var ev bus.Event
		if err := json.Unmarshal(value, &ev); err != nil {
			// Poison messages are logged by the consumer loop and skipped.
			return fmt.Errorf("decode broadcast event: %w", err)
		}
		return h(ctx, ev)
	})
}

func (b *BroadcastSubscriber) Close() error { return b.c.Close() }
