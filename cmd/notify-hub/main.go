package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/events2go/notify-hub/internal/config/notify-hub"
	"github.com/events2go/notify-hub/internal/hub"
	"github.com/events2go/notify-hub/internal/obs"
	kafkax "github.com/events2go/notify-hub/internal/repository/kafka"
	pg "github.com/events2go/notify-hub/internal/repository/postgres"
	"github.com/events2go/notify-hub/internal/services/notifications"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/notify-hub.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting notify-hub", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	otelShutdown, err := initOTel(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(rootCtx) }()

	db, err := initDB(rootCtx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	pub, sub := kafkax.BootstrapBroadcast(rootCtx, kafkax.BroadcastConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		GroupPrefix: cfg.Kafka.GroupPrefix,
		Partitions:  cfg.Kafka.Partitions,
	}, logger)
	defer func() { _ = pub.Close() }()
	defer func() { _ = sub.Close() }()

	repo := pg.NewNotificationRepo(db)
	tx := pg.NewTransactor(db, logger)
	registry := hub.NewRegistry(logger)
	dispatcher := hub.NewDispatcher(logger, sub, registry, repo)
	uc := notifications.NewUsecase(logger, repo, tx, pub, notifications.Limits{
		Default: cfg.Page.DefaultLimit,
		Max:     cfg.Page.MaxLimit,
	}, nil)

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		metricsSrv = obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, db.Pool.Ping, logger)
	}

	dispCtx, dispCancel := context.WithCancel(rootCtx)
	defer dispCancel()

	dispErrCh := make(chan error, 1)
	go func() { dispErrCh <- dispatcher.Run(dispCtx) }()

	httpSrv := buildHTTPServer(cfg, logger, db, uc, registry)
	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, cfg, logger) }()

	var runErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case runErr = <-dispErrCh:
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.Error("dispatcher", zap.Error(runErr))
		}
	case runErr = <-httpErrCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(runErr))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	// Stop accepting traffic, silence the dispatcher, then drop live
	// connections; clients rebuild the registry by reconnecting elsewhere.
	_ = httpSrv.Shutdown(shCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shCtx)
	}
	dispCancel()
	registry.Drain()

	time.Sleep(100 * time.Millisecond)
	logger.Info("bye")
}
