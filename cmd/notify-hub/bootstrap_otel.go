package main

import (
	"context"

	config "github.com/events2go/notify-hub/internal/config/notify-hub"
	"github.com/events2go/notify-hub/internal/obs"
	"go.uber.org/zap"
)

func initOTel(ctx context.Context, cfg *config.Config, logger *zap.Logger) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		return nil, err
	}
	logger.Debug("otel configured", zap.Bool("enabled", cfg.OTEL.Enable))
	return func(ctx context.Context) error { return closer.Shutdown(ctx) }, nil
}
