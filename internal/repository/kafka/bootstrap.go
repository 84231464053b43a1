package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BootstrapBroadcast provisions the topic (best effort) and returns the
// publisher/subscriber pair for one replica.
func BootstrapBroadcast(ctx context.Context, cfg BroadcastConfig, logger *zap.Logger) (*BroadcastPublisher, *BroadcastSubscriber) {
	_ = EnsureTopic(ctx, cfg.Brokers, TopicSpec{
		Name:              cfg.Topic,
		NumPartitions:     cfg.Partitions,
		ReplicationFactor: 1,
		MaxWait:           5 * time.Second,
	}, logger)

	return NewBroadcastPublisher(cfg, logger), NewBroadcastSubscriber(cfg, logger)
}
