package bridge

import (
	"fmt"
	"io"
	"os/exec"

	"lspwsbridge/internal/lspenvelope"
	"lspwsbridge/internal/serverselect"
)

// SpawnError wraps a failure starting the child language server. The
// bridge treats this as immediately fatal: Starting goes straight to
// Closed, and the client never sees anything but a close frame.
type SpawnError struct {
	Command serverselect.Command
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("bridge: spawning %q: %v", e.Command.Name(), e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// child owns the language-server subprocess: its framed stdio and the
// os/exec handle used to kill it on any exit path.
type child struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *lspenvelope.Reader
	writer *lspenvelope.Writer
}

func spawnChild(command serverselect.Command) (*child, error) {
	cmd := exec.Command(command[0], command[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}

	return &child{
		cmd:    cmd,
		stdin:  stdin,
		reader: lspenvelope.NewReader(stdout),
		writer: lspenvelope.NewWriter(stdin),
	}, nil
}

// send writes one LSP message to the child's stdin, framed.
func (c *child) send(payload []byte) error {
	return c.writer.WriteMessage(payload)
}

// terminate sends a terminate signal to the child and waits for it to
// exit, satisfying the kill-on-drop guarantee the bridge owes its child on
// every teardown path. Safe to call more than once.
func (c *child) terminate() {
	if c.cmd == nil || c.cmd.Process == nil {
		return
	}
	_ = c.cmd.Process.Kill()
	_ = c.stdin.Close()
	_ = c.cmd.Wait()
}

// stdoutEvent is one event yielded by the child-stdout reader goroutine.
type stdoutEvent struct {
	payload []byte
	err     error
	eof     bool
}

// readChildStdout feeds the reader's framed messages into out until the
// child's stdout is exhausted. Non-EndOfStream codec errors are reported
// but the loop keeps
// reading, per the bridge's "not fatal, child may recover" policy for
// stdout codec errors; a genuine EOF is reported once as eof=true and the
// goroutine returns.
func readChildStdout(r *lspenvelope.Reader, out chan<- stdoutEvent) {
	for {
		payload, err := r.Next()
		if err != nil {
			if err == lspenvelope.ErrEndOfStream {
				out <- stdoutEvent{eof: true}
				return
			}
			out <- stdoutEvent{err: err}
			continue
		}
		out <- stdoutEvent{payload: payload}
	}
}
