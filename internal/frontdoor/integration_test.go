package frontdoor

import (
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lspwsbridge/internal/bridge"
	"lspwsbridge/internal/bridgeconfig"
	"lspwsbridge/internal/serverselect"
)

// catContext bridges connections to `cat`, which echoes the framed
// message stream back unchanged, enough to drive the full client ->
// child -> client path without a real language server.
func catContext(t *testing.T, strict bool) *bridge.Context {
	t.Helper()
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	return &bridge.Context{
		Registry: &serverselect.Registry{
			Startup:    []serverselect.Command{{"cat"}},
			StrictName: strict,
		},
		Config: &bridgeconfig.Config{},
		Logger: zap.NewNop(),
	}
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBridgeRoundTripThroughChild(t *testing.T) {
	srv := httptest.NewServer(New(Options{Bridge: catContext(t, false)}, zap.NewNop()))
	defer srv.Close()

	conn := dialWS(t, srv, "")

	msg := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"processId":null}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, msg, string(data))
}

func TestBridgePreservesClientFIFOOrder(t *testing.T) {
	srv := httptest.NewServer(New(Options{Bridge: catContext(t, false)}, zap.NewNop()))
	defer srv.Close()

	conn := dialWS(t, srv, "")

	first := `{"jsonrpc":"2.0","id":1,"method":"first"}`
	second := `{"jsonrpc":"2.0","id":2,"method":"second"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(first)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(second)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, first, string(data))

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, second, string(data))
}

func TestBridgeForwardsUnparseableTextOpaquely(t *testing.T) {
	srv := httptest.NewServer(New(Options{Bridge: catContext(t, false)}, zap.NewNop()))
	defer srv.Close()

	conn := dialWS(t, srv, "")

	raw := "this is not json"
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, raw, string(data))
}

func TestBridgeStrictUnknownNameClosesConnection(t *testing.T) {
	srv := httptest.NewServer(New(Options{Bridge: catContext(t, true)}, zap.NewNop()))
	defer srv.Close()

	conn := dialWS(t, srv, "?name=pyright")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "the bridge must close the connection without spawning a server")
}
