package lspenvelope

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadRoundTrips(t *testing.T) {
	payloads := []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{}`,
		`{"text":"héllo, wörld"}`,
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, p := range payloads {
		require.NoError(t, w.WriteMessage([]byte(p)))
	}

	r := NewReader(&buf)
	for _, want := range payloads {
		got, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	_, err := r.Next()
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestWriteMessageFraming(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteMessage([]byte(`{"a":1}`)))
	assert.Equal(t, "Content-Length: 7\r\n\r\n{\"a\":1}", buf.String())
}

func TestReaderIgnoresUnknownHeaders(t *testing.T) {
	in := "Content-Type: application/vscode-jsonrpc; charset=utf-8\r\nContent-Length: 2\r\n\r\n{}"
	got, err := NewReader(strings.NewReader(in)).Next()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))
}

func TestReaderHeaderNameIsCaseInsensitive(t *testing.T) {
	in := "content-length: 2\r\n\r\n{}"
	got, err := NewReader(strings.NewReader(in)).Next()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))
}

func TestReaderMissingContentLength(t *testing.T) {
	in := "Content-Type: application/json\r\n\r\n{}"
	_, err := NewReader(strings.NewReader(in)).Next()
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "missing Content-Length")
}

func TestReaderNonNumericContentLength(t *testing.T) {
	in := "Content-Length: two\r\n\r\n{}"
	_, err := NewReader(strings.NewReader(in)).Next()
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestReaderMalformedHeaderLine(t *testing.T) {
	in := "NoColonHere\r\n\r\n"
	_, err := NewReader(strings.NewReader(in)).Next()
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestReaderEOFMidBodyIsProtocolError(t *testing.T) {
	in := "Content-Length: 100\r\n\r\n{\"tru"
	_, err := NewReader(strings.NewReader(in)).Next()
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestReaderEOFMidHeadersIsProtocolError(t *testing.T) {
	in := "Content-Length: 2\r\n"
	_, err := NewReader(strings.NewReader(in)).Next()
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.NotErrorIs(t, err, ErrEndOfStream)
}

func TestReaderCleanEOFBetweenMessages(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	_, err := r.Next()
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestRoundTripLargeBody(t *testing.T) {
	body := fmt.Sprintf(`{"text":%q}`, strings.Repeat("x", 1<<16))

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteMessage([]byte(body)))

	got, err := NewReader(&buf).Next()
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}
