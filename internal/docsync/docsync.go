// Package docsync writes textDocument/didSave payloads to disk, mirroring
// what the editor's own buffer holds at save time.
package docsync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"lspwsbridge/internal/lspenvelope"
)

// IoError wraps a filesystem failure while writing a saved document.
// Connection-fatal per the bridge's error taxonomy.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("docsync: writing %s: %v", e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// MaybeWrite writes the document to disk if env is a textDocument/didSave
// notification carrying text and a file:// URI. It is a no-op for anything
// else, including a didSave with no text (save-without-contents) or a
// non-file URI. URI remapping runs before this, so a source:// document
// arrives here already rewritten to its file:// path.
func MaybeWrite(env *lspenvelope.Envelope) error {
	if !env.IsDidSave() {
		return nil
	}

	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(env.Params(), &params); err != nil {
		// Not a shape we understand; nothing to sync.
		return nil
	}

	var withText struct {
		Text *string `json:"text"`
	}
	_ = json.Unmarshal(env.Params(), &withText)
	if withText.Text == nil {
		// Save-without-contents; nothing to sync. An empty string still
		// counts as contents, since the editor may have truncated the file.
		return nil
	}
	text := *withText.Text

	docURI := string(params.TextDocument.URI)
	if !strings.HasPrefix(docURI, "file://") {
		return nil
	}

	path := uri.URI(docURI).Filename()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &IoError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return &IoError{Path: path, Err: err}
	}
	return nil
}
