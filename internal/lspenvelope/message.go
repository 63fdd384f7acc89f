package lspenvelope

import (
	"encoding/json"
	"fmt"

	"go.lsp.dev/jsonrpc2"
)

// Kind tags which of the three JSON-RPC shapes an Envelope carries.
type Kind int

const (
	// KindRequest has both an id and a method.
	KindRequest Kind = iota
	// KindResponse has an id but no method.
	KindResponse
	// KindNotification has a method but no id.
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// ParseError reports that a client-supplied text frame was not a valid
// JSON-RPC envelope. It is non-fatal to the connection: the bridge forwards
// the original text opaquely.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("lspenvelope: parse error: %s", e.Reason)
}

// Code reports the JSON-RPC error code a ParseError corresponds to, for
// connection logs that want to tag malformed client input the same way the
// wire protocol itself would.
func (e *ParseError) Code() jsonrpc2.Code {
	return jsonrpc2.ParseError
}

// Envelope is a parsed LSP message. It keeps every top-level field of the
// original object so transforms that only touch params/result round-trip
// everything else untouched (modulo key order, which Go's map-backed JSON
// does not preserve).
type Envelope struct {
	Kind   Kind
	Method string

	fields map[string]json.RawMessage
}

// Parse classifies text as a Request, Response, or Notification by JSON
// shape: an "id" plus "method" is a Request, "id" alone is a Response,
// "method" alone is a Notification. Anything else (invalid JSON, or valid
// JSON lacking both id and method) is a *ParseError.
func Parse(text []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(text, &fields); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	_, hasID := fields["id"]
	methodRaw, hasMethod := fields["method"]

	var method string
	if hasMethod {
		if err := json.Unmarshal(methodRaw, &method); err != nil {
			return nil, &ParseError{Reason: "method is not a string"}
		}
	}

	switch {
	case hasID && hasMethod:
		return &Envelope{Kind: KindRequest, Method: method, fields: fields}, nil
	case hasID && !hasMethod:
		return &Envelope{Kind: KindResponse, fields: fields}, nil
	case !hasID && hasMethod:
		return &Envelope{Kind: KindNotification, Method: method, fields: fields}, nil
	default:
		return nil, &ParseError{Reason: "neither id nor method present"}
	}
}

// Params returns the raw "params" field, or nil if absent.
func (e *Envelope) Params() json.RawMessage {
	return e.fields["params"]
}

// SetParams replaces the "params" field.
func (e *Envelope) SetParams(raw json.RawMessage) {
	e.fields["params"] = raw
}

// Result returns the raw "result" field, or nil if absent.
func (e *Envelope) Result() json.RawMessage {
	return e.fields["result"]
}

// SetResult replaces the "result" field.
func (e *Envelope) SetResult(raw json.RawMessage) {
	e.fields["result"] = raw
}

// Serialize re-encodes the envelope to JSON.
func (e *Envelope) Serialize() ([]byte, error) {
	return json.Marshal(e.fields)
}

// IsInitialize reports whether this is an `initialize` Request.
func (e *Envelope) IsInitialize() bool {
	return e.Kind == KindRequest && e.Method == "initialize"
}

// IsDidSave reports whether this is a `textDocument/didSave` Notification.
func (e *Envelope) IsDidSave() bool {
	return e.Kind == KindNotification && e.Method == "textDocument/didSave"
}
