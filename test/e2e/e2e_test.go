//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type cfg struct {
	APIBase   string // http://localhost:8080
	JWTSecret string
	WaitPush  time.Duration
}

func loadCfg() cfg {
	return cfg{
		APIBase:   getenv("E2E_API_BASE", "http://localhost:8080"),
		JWTSecret: getenv("E2E_JWT_SECRET", "dev-secret-change-me"),
		WaitPush:  mustParseDur(getenv("E2E_WAIT_PUSH", "15s")),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustParseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}

func mintToken(t *testing.T, secret, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func postJSON(t *testing.T, url, token string, body any) []byte {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(http.MethodPost, url, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body=%s", string(data))
	return data
}

// TestPushPipeline drives the whole path: connect a socket, create a
// record through the API and expect it pushed back over the socket.
func TestPushPipeline(t *testing.T) {
	c := loadCfg()
	recipient := "e2e-" + uuid.NewString()[:8]
	token := mintToken(t, c.JWTSecret, recipient)

	wsBase := "ws" + strings.TrimPrefix(c.APIBase, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsBase+"/ws/notifications?token="+token, nil)
	require.NoError(t, err)
	defer ws.Close()

	// Give the replica's registry a beat to pick up the connection.
	time.Sleep(500 * time.Millisecond)

	created := postJSON(t, c.APIBase+"/api/v1/notifications/send-test", token, map[string]string{
		"title": "e2e push",
		"body":  "round trip through store, bus and socket",
	})
	var want struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(created, &want))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(c.WaitPush)))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err, "no push within %s", c.WaitPush)

	var got struct {
		ID     int64  `json:"id"`
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(msg, &got))
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, "e2e push", got.Title)
	require.Equal(t, "unread", got.Status)
}
