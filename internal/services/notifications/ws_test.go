package notifications

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/events2go/notify-hub/internal/auth"
	"github.com/events2go/notify-hub/internal/hub"
)

func newTestGateway(t *testing.T) (*httptest.Server, *hub.Registry) {
	t.Helper()
	registry := hub.NewRegistry(zap.NewNop())
	gw := NewGateway(zap.NewNop(), auth.NewJWTVerifier(testSecret), registry, GatewayConfig{
		WriteTimeout: time.Second,
		PingInterval: 50 * time.Millisecond,
		PongTimeout:  2 * time.Second,
	})

	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler(zap.NewNop())
	e.GET("/ws/notifications", gw.Handle)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, registry
}

func wsURL(srv *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func TestGatewayRejectsBadToken(t *testing.T) {
	srv, registry := newTestGateway(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(srv, "garbage"), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	require.Equal(t, 0, registry.Len())
}

func TestGatewayRegistersAndPushes(t *testing.T) {
	srv, registry := newTestGateway(t)
	token := mintToken(t, "u1")

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return registry.Present("u1") }, time.Second, 10*time.Millisecond)

	require.True(t, registry.SendIfPresent("u1", []byte(`{"id":1}`)))
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"id":1}`, string(msg))
}

func TestGatewayUnregistersOnDisconnect(t *testing.T) {
	srv, registry := newTestGateway(t)
	token := mintToken(t, "u1")

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return registry.Present("u1") }, time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return !registry.Present("u1") }, 2*time.Second, 10*time.Millisecond)
}
