package notifications

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/events2go/notify-hub/internal/auth"
	"github.com/events2go/notify-hub/internal/domain/notification"
	"github.com/events2go/notify-hub/internal/hub"
)

type GatewayConfig struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// Gateway owns the inbound push endpoint. A connection moves through
// authenticate -> register -> open; it receives no application frames from
// the client (push only) and every exit path unregisters before the close.
type Gateway struct {
	log      *zap.Logger
	verifier auth.Verifier
	registry *hub.Registry
	cfg      GatewayConfig
	upgrader websocket.Upgrader
}

func NewGateway(log *zap.Logger, v auth.Verifier, reg *hub.Registry, cfg GatewayConfig) *Gateway {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	return &Gateway{
		log:      log.With(zap.String("component", "gateway.ws")),
		verifier: v,
		registry: reg,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers cannot set Authorization headers on websockets, so
			// the credential travels as a query parameter and origin
			// checking is delegated to the credential itself.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handle serves GET /ws/notifications?token=...
func (g *Gateway) Handle(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return notification.ErrUnauthenticated
	}
	recipientID, err := g.verifier.Verify(token)
	if err != nil {
		// Reject before the upgrade: the handshake fails without ever
		// touching the registry and no data frame is sent.
		return notification.ErrUnauthenticated
	}

	ws, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the handshake failure.
		return nil
	}

	conn := newWSConn(ws, g.cfg.WriteTimeout)
	g.registry.Register(recipientID, conn)
	g.log.Info("connected", zap.String("recipient_id", recipientID))

	defer func() {
		g.registry.Unregister(recipientID, conn)
		_ = conn.Close()
		g.log.Info("disconnected", zap.String("recipient_id", recipientID))
	}()

	done := make(chan struct{})
	defer close(done)
	go g.pingLoop(conn, done)

	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
	})

	// The client sends nothing meaningful on this channel; the read loop
	// exists to observe pongs, close frames and dead peers.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (g *Gateway) pingLoop(conn *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.Ping(g.cfg.WriteTimeout); err != nil {
				// Half-open connection; the read deadline will reap it.
				return
			}
		}
	}
}

// wsConn adapts a gorilla connection to the registry's Conn. Writes are
// serialized (gorilla allows one concurrent writer) and bounded by a
// deadline so a stalled peer fails fast instead of blocking dispatch.
type wsConn struct {
	mu           sync.Mutex
	ws           *websocket.Conn
	writeTimeout time.Duration
}

func newWSConn(ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{ws: ws, writeTimeout: writeTimeout}
}

func (c *wsConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) Ping(timeout time.Duration) error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

func (c *wsConn) Close() error { return c.ws.Close() }
