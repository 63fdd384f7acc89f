package bridge

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lspwsbridge/internal/bridgeconfig"
	"lspwsbridge/internal/lspenvelope"
	"lspwsbridge/internal/serverselect"
	"lspwsbridge/internal/sqlprovision"
	"lspwsbridge/internal/uriremap"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "closed", StateClosed.String())
}

// newTestBridge builds a bridge whose child stdin is a pipe the test can
// read from directly, bypassing process spawning entirely.
func newTestBridge(t *testing.T, ctx *Context) (*bridge, *io.PipeReader) {
	t.Helper()
	pr, pw := io.Pipe()
	c := &child{
		stdin:  pw,
		writer: lspenvelope.NewWriter(pw),
	}
	b := &bridge{
		child:      c,
		ctx:        ctx,
		logger:     zap.NewNop(),
		serverName: "gopls",
		state:      StateRunning,
		isAlive:    true,
	}
	return b, pr
}

type framedRead struct {
	payload []byte
	err     error
}

func readOneFramed(r io.Reader) framedRead {
	reader := lspenvelope.NewReader(r)
	payload, err := reader.Next()
	return framedRead{payload: payload, err: err}
}

func TestHandleClientMessageForwardsToChild(t *testing.T) {
	ctx := &Context{Config: &bridgeconfig.Config{}}
	b, pr := newTestBridge(t, ctx)

	env, err := lspenvelope.Parse([]byte(`{"jsonrpc":"2.0","id":1,"method":"textDocument/hover","params":{}}`))
	require.NoError(t, err)

	done := make(chan framedRead, 1)
	go func() { done <- readOneFramed(pr) }()

	b.handleClientMessage(env)

	result := <-done
	require.NoError(t, result.err)
	assert.Contains(t, string(result.payload), "textDocument/hover")
	assert.Equal(t, StateRunning, b.state)
}

func TestHandleRawForwardsVerbatim(t *testing.T) {
	ctx := &Context{Config: &bridgeconfig.Config{}}
	b, pr := newTestBridge(t, ctx)

	done := make(chan framedRead, 1)
	go func() { done <- readOneFramed(pr) }()

	b.handleSocketEvent(socketEvent{kind: eventRaw, raw: "not json {{{"})

	result := <-done
	require.NoError(t, result.err)
	assert.Equal(t, "not json {{{", string(result.payload))
	assert.Equal(t, StateRunning, b.state)
}

func TestHandlePongMarksConnectionAlive(t *testing.T) {
	ctx := &Context{Config: &bridgeconfig.Config{}}
	b, _ := newTestBridge(t, ctx)
	b.isAlive = false

	b.handleSocketEvent(socketEvent{kind: eventPong})

	assert.True(t, b.isAlive)
	assert.Equal(t, StateRunning, b.state)
}

func TestHandleEndDrains(t *testing.T) {
	ctx := &Context{Config: &bridgeconfig.Config{}}
	b, _ := newTestBridge(t, ctx)

	b.handleSocketEvent(socketEvent{kind: eventEnd})

	assert.Equal(t, StateDraining, b.state)
}

func TestHandleReadErrorIsNotFatal(t *testing.T) {
	ctx := &Context{Config: &bridgeconfig.Config{}}
	b, _ := newTestBridge(t, ctx)

	b.handleSocketEvent(socketEvent{kind: eventReadError, err: io.ErrUnexpectedEOF})

	assert.Equal(t, StateRunning, b.state)
}

func TestHandleTickDrainsWhenAlreadyUnhealthy(t *testing.T) {
	ctx := &Context{Config: &bridgeconfig.Config{}}
	b, _ := newTestBridge(t, ctx)
	b.isAlive = false // no Pong arrived since the previous Tick

	b.handleTick()

	assert.Equal(t, StateDraining, b.state)
}

func TestHandleClientMessageRemapEscapeIsFatal(t *testing.T) {
	root, err := uriremap.NewRoot("file:///proj/")
	require.NoError(t, err)
	ctx := &Context{Config: &bridgeconfig.Config{}, Remap: true, Root: root}
	b, _ := newTestBridge(t, ctx)

	env, err := lspenvelope.Parse([]byte(`{"method":"m","params":{"uri":"source://../etc/passwd"}}`))
	require.NoError(t, err)

	b.handleClientMessage(env)

	assert.Equal(t, StateDraining, b.state)
}

func TestSetDrainingIsIdempotent(t *testing.T) {
	ctx := &Context{Config: &bridgeconfig.Config{}}
	b, _ := newTestBridge(t, ctx)

	b.setDraining(reasonPeerGone)
	assert.Equal(t, StateDraining, b.state)

	// A second call must not panic or change the recorded reason's logging path.
	b.setDraining(reasonUnhealthy)
	assert.Equal(t, StateDraining, b.state)
}

func TestDrainRunsSQLCleanupAndTerminatesChild(t *testing.T) {
	ctx := &Context{Config: &bridgeconfig.Config{}}
	b, _ := newTestBridge(t, ctx)
	c, err := spawnChild(serverselect.Command{"cat"})
	require.NoError(t, err)
	b.child = c
	b.database = &sqlprovision.Record{Driver: "sqlite"}
	b.state = StateDraining

	b.drain()

	assert.Nil(t, b.database)
	assert.NotNil(t, c.cmd.ProcessState, "the child must have been killed and reaped")
	assert.Equal(t, StateClosed, b.state)
}
