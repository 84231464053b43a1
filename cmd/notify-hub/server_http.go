package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/events2go/notify-hub/internal/auth"
	config "github.com/events2go/notify-hub/internal/config/notify-hub"
	"github.com/events2go/notify-hub/internal/hub"
	"github.com/events2go/notify-hub/internal/obs"
	pg "github.com/events2go/notify-hub/internal/repository/postgres"
	"github.com/events2go/notify-hub/internal/services/notifications"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, db *pg.DB, uc *notifications.Usecase, registry *hub.Registry) *http.Server {
	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	gateway := notifications.NewGateway(logger, verifier, registry, notifications.GatewayConfig{
		WriteTimeout: cfg.WS.WriteTimeout,
		PingInterval: cfg.WS.PingInterval,
		PongTimeout:  cfg.WS.PongTimeout,
	})
	handler := notifications.NewHandler(logger, uc)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = notifications.HTTPErrorHandler(logger)
	e.Validator = notifications.NewAppValidator()
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	api := e.Group("/api/v1/notifications", auth.Middleware(verifier))
	handler.Register(api)

	// The push endpoint authenticates through the token query parameter
	// itself; the bearer middleware does not apply to the handshake.
	e.GET("/ws/notifications", gateway.Handle)

	e.GET("/metrics", echo.WrapHandler(obs.MetricsHandler()))
	e.GET("/healthz", func(c echo.Context) error {
		hctx, cancel := context.WithTimeout(c.Request().Context(), 500*time.Millisecond)
		defer cancel()
		if err := db.Pool.Ping(hctx); err != nil {
			return c.String(http.StatusServiceUnavailable, "unhealthy: db")
		}
		return c.String(http.StatusOK, "ok")
	})

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           otelhttp.NewHandler(e, "notify-hub"),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		// WriteTimeout would kill long-lived sockets, but websocket
		// connections are hijacked and exempt from server timeouts.
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			return err
		}
	}
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
