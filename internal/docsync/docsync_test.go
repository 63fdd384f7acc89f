package docsync

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lspwsbridge/internal/lspenvelope"
)

func didSave(t *testing.T, uri, text string) *lspenvelope.Envelope {
	t.Helper()
	raw := fmt.Sprintf(`{"jsonrpc":"2.0","method":"textDocument/didSave","params":{"textDocument":{"uri":%q},"text":%q}}`, uri, text)
	env, err := lspenvelope.Parse([]byte(raw))
	require.NoError(t, err)
	return env
}

func TestMaybeWriteWritesSavedDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "src", "a.rs")

	env := didSave(t, "file://"+path, "fn main() {}")
	require.NoError(t, MaybeWrite(env))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fn main() {}", string(data))
}

func TestMaybeWriteOverwritesLastWriterWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	require.NoError(t, MaybeWrite(didSave(t, "file://"+path, "first")))
	require.NoError(t, MaybeWrite(didSave(t, "file://"+path, "second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestMaybeWriteEmptyTextTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("old contents"), 0o644))

	require.NoError(t, MaybeWrite(didSave(t, "file://"+path, "")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestMaybeWriteSkipsNonDidSave(t *testing.T) {
	env, err := lspenvelope.Parse([]byte(`{"method":"textDocument/didOpen","params":{"textDocument":{"uri":"file:///nowhere/a.rs","text":"x"}}}`))
	require.NoError(t, err)

	assert.NoError(t, MaybeWrite(env))
	assert.NoFileExists(t, "/nowhere/a.rs")
}

func TestMaybeWriteSkipsSaveWithoutText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	env, err := lspenvelope.Parse([]byte(fmt.Sprintf(`{"method":"textDocument/didSave","params":{"textDocument":{"uri":%q}}}`, "file://"+path)))
	require.NoError(t, err)

	assert.NoError(t, MaybeWrite(env))
	assert.NoFileExists(t, path)
}

func TestMaybeWriteSkipsNonFileURI(t *testing.T) {
	env := didSave(t, "source://src/a.rs", "x")
	assert.NoError(t, MaybeWrite(env))
}

func TestMaybeWriteReportsIoError(t *testing.T) {
	dir := t.TempDir()
	// A file where a parent directory is expected forces MkdirAll to fail.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	env := didSave(t, "file://"+filepath.Join(blocker, "a.txt"), "x")

	err := MaybeWrite(env)
	var ioErr *IoError
	assert.ErrorAs(t, err, &ioErr)
}
