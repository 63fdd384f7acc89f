// Package bridge implements the connection bridge: the per-connection
// state machine that multiplexes a WebSocket client, a spawned language
// server's stdio, and a heartbeat timer, applying URI remapping,
// save-to-disk, and SQL provisioning to messages in flight.
package bridge

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lspwsbridge/internal/bridgeconfig"
	"lspwsbridge/internal/docsync"
	"lspwsbridge/internal/lspenvelope"
	"lspwsbridge/internal/serverselect"
	"lspwsbridge/internal/sqlprovision"
	"lspwsbridge/internal/uriremap"
)

// Context is the immutable configuration a connection is opened with,
// built once at upgrade time and never mutated for the life of the
// connection.
type Context struct {
	Registry *serverselect.Registry
	Config   *bridgeconfig.Config
	Root     *uriremap.Root // nil when Remap is false
	Sync     bool
	Remap    bool
	Logger   *zap.Logger
}

// Run drives one connection end to end: selects and spawns the server,
// multiplexes client/child/heartbeat events until a drain condition
// fires, then cleans up unconditionally. It never returns an error to the
// caller: all failures are logged with connection-scoped context, per
// the bridge's "never propagate past itself" policy, and the front door
// only needs to know the upgrade succeeded.
func Run(conn *websocket.Conn, ctx *Context, requestedName string) {
	logger := ctx.Logger.With(zap.String("requested_name", requestedName))

	cmd, usedFallback, err := ctx.Registry.Select(requestedName)
	if err != nil {
		logger.Warn("no server selected for connection", zap.Error(err))
		_ = sendClose(conn)
		return
	}
	if usedFallback {
		logger.Warn("no command found for requested name, using the first one", zap.String("fallback", cmd.Name()))
	}

	logger = logger.With(zap.String("command", cmd.Name()))
	logger.Info("starting language server")

	c, err := spawnChild(cmd)
	if err != nil {
		logger.Error("failed to start language server", zap.Error(err))
		_ = sendClose(conn)
		return
	}

	b := &bridge{
		conn:        conn,
		child:       c,
		ctx:         ctx,
		logger:      logger,
		serverName:  cmd.Name(),
		state:       StateRunning,
		isAlive:     true,
	}
	b.run()
}

// bridge is the live, mutable state for one connection. It is only ever
// touched by the single goroutine running run's event loop, so no locking.
type bridge struct {
	conn   *websocket.Conn
	child  *child
	ctx    *Context
	logger *zap.Logger

	serverName string
	state      State
	isAlive    bool
	database   *sqlprovision.Record
}

func (b *bridge) run() {
	socketEvents := make(chan socketEvent, 16)
	childEvents := make(chan stdoutEvent, 16)

	go readSocket(b.conn, socketEvents)
	go readChildStdout(b.child.reader, childEvents)

	ticker := newTicker(heartbeatPeriod)
	defer ticker.stop()

	for b.state == StateRunning {
		select {
		case ev := <-socketEvents:
			b.handleSocketEvent(ev)

		case ev := <-childEvents:
			b.handleChildEvent(ev)

		case <-ticker.c:
			b.handleTick()
		}
	}

	b.drain()
}

func (b *bridge) handleSocketEvent(ev socketEvent) {
	switch ev.kind {
	case eventLspMessage:
		b.handleClientMessage(ev.env)

	case eventRaw:
		fields := []zap.Field{zap.String("text", ev.raw)}
		var perr *lspenvelope.ParseError
		if errors.As(ev.err, &perr) {
			fields = append(fields, zap.Int64("jsonrpc_code", int64(perr.Code())))
		}
		b.logger.Warn("forwarding unparseable client message", fields...)
		if err := b.child.send([]byte(ev.raw)); err != nil {
			b.fail(reasonWriteError, err)
		}

	case eventClose:
		b.logger.Info("received close frame from client")
		// The connection terminates on the subsequent End event.

	case eventPong:
		b.isAlive = true

	case eventReadError:
		// Non-fatal per policy; the End event that always follows drives
		// the actual transition to Draining.
		b.logger.Warn("websocket read error", zap.Error(ev.err))

	case eventEnd:
		b.setDraining(reasonPeerGone)
	}
}

func (b *bridge) handleClientMessage(env *lspenvelope.Envelope) {
	if b.ctx.Remap {
		if _, err := uriremap.Rewrite(env, b.ctx.Root); err != nil {
			b.logger.Error("failed to remap URI from client", zap.Error(err))
			b.fail(reasonTransform, err)
			return
		}
	}

	if b.ctx.Sync {
		if err := docsync.MaybeWrite(env); err != nil {
			b.logger.Error("failed to sync document to disk", zap.Error(err))
			b.fail(reasonTransform, err)
			return
		}
	}

	rec, err := sqlprovision.ProvisionOnInitialize(env, b.serverName, b.ctx.Config)
	if err != nil {
		b.logger.Error("sql provisioning failed", zap.Error(err))
		if rec != nil {
			b.database = rec
		}
		b.fail(reasonTransform, err)
		return
	}
	if rec != nil {
		b.database = rec
	}

	payload, err := env.Serialize()
	if err != nil {
		b.fail(reasonTransform, err)
		return
	}

	b.logger.Debug("-> child", zap.ByteString("payload", payload))
	if err := b.child.send(payload); err != nil {
		b.fail(reasonWriteError, err)
	}
}

func (b *bridge) handleChildEvent(ev stdoutEvent) {
	switch {
	case ev.eof:
		b.logger.Error("language server exited unexpectedly")
		_ = sendClose(b.conn)
		b.setDraining(reasonChildExited)

	case ev.err != nil:
		b.logger.Warn("codec error reading from language server", zap.Error(ev.err))

	default:
		b.forwardFromChild(ev.payload)
	}
}

func (b *bridge) forwardFromChild(payload []byte) {
	text := string(payload)

	if b.ctx.Remap {
		env, err := lspenvelope.Parse(payload)
		if err == nil {
			if _, rerr := uriremap.Rewrite(env, b.ctx.Root); rerr == nil {
				if out, serr := env.Serialize(); serr == nil {
					text = string(out)
				}
			}
		}
	}

	b.logger.Debug("<- child", zap.String("payload", text))
	if err := sendText(b.conn, text); err != nil {
		b.fail(reasonWriteError, err)
	}
}

func (b *bridge) handleTick() {
	if !b.isAlive {
		b.logger.Warn("terminating unhealthy connection")
		b.setDraining(reasonUnhealthy)
		return
	}

	b.isAlive = false
	if err := sendPing(b.conn); err != nil {
		b.fail(reasonWriteError, err)
	}
}

func (b *bridge) fail(reason drainReason, err error) {
	b.logger.Error(fmt.Sprintf("connection-fatal error: %v", err), zap.String("reason", string(reason)))
	b.setDraining(reason)
}

func (b *bridge) setDraining(reason drainReason) {
	if b.state != StateRunning {
		return
	}
	b.logger.Info("draining connection", zap.String("reason", string(reason)))
	b.state = StateDraining
}

// drain runs cleanup exactly once regardless of how Running was left:
// SQL teardown if a record exists, then the child is terminated. The
// socket itself is closed by the caller's deferred conn.Close; see the
// front door's upgrade handler.
func (b *bridge) drain() {
	if b.database != nil {
		if err := b.database.Cleanup(); err != nil {
			b.logger.Warn("sql cleanup failed", zap.Error(err))
		}
		b.database = nil
	}

	b.child.terminate()
	b.state = StateClosed
	b.logger.Info("connection closed")
}
