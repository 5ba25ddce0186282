package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gorelay/internal/registry"
	"github.com/Tyrowin/gorelay/internal/router"
	"github.com/Tyrowin/gorelay/internal/server"
)

const testGrace = 200 * time.Millisecond

// newTestRelay starts a relay behind an httptest server. The relay and the
// listener are shut down when the test ends.
func newTestRelay(t *testing.T, customize func(cfg *server.Config)) (*server.Server, *httptest.Server) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.GracePeriod = testGrace
	cfg.StaticDir = t.TempDir()
	if customize != nil {
		customize(cfg)
	}

	srv := server.New(cfg, nil)
	ts := httptest.NewServer(srv.SetupRoutes())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(2 * time.Second)
	})
	return srv, ts
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getURL(t *testing.T, url string) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

// register registers name and returns its token.
func register(t *testing.T, ts *httptest.Server, name string) string {
	t.Helper()

	resp := postJSON(t, ts.URL+"/register", server.RegisterRequest{Name: name})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out server.RegisterResponse
	decodeBody(t, resp, &out)
	require.NotEmpty(t, out.Token)
	return out.Token
}

func sendMessage(t *testing.T, ts *httptest.Server, token, to, body string) *http.Response {
	t.Helper()
	return postJSON(t, ts.URL+"/send_message", server.SendMessageRequest{Token: token, To: to, Body: body})
}

func messagesURL(ts *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/messages/" + token
}

// connect opens a push connection and waits until the registry shows the
// client as connected.
func connect(t *testing.T, srv *server.Server, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(messagesURL(ts, token), nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	waitForState(t, srv, token, registry.StateConnected)
	return conn
}

func waitForState(t *testing.T, srv *server.Server, token string, state registry.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		c, err := srv.Registry().FindByCredential(token)
		return err == nil && c.State == state
	}, 2*time.Second, 5*time.Millisecond, "client never reached state %s", state)
}

func readMessage(t *testing.T, conn *websocket.Conn) router.Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg router.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func expectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected no message")
}

func closeNormally(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	require.NoError(t, err)
	_ = conn.Close()
}
