package bridge

import (
	"time"

	"github.com/gorilla/websocket"

	"lspwsbridge/internal/lspenvelope"
)

const (
	writeWait       = 10 * time.Second
	heartbeatPeriod = 30 * time.Second
)

// socketEventKind tags a socketEvent the way §3's Socket-Side Event
// variant does.
type socketEventKind int

const (
	eventLspMessage socketEventKind = iota
	eventRaw
	eventClose
	eventPong
	eventEnd
	eventReadError
)

type socketEvent struct {
	kind socketEventKind
	env  *lspenvelope.Envelope
	raw  string
	err  error
}

// readSocket pumps text frames from conn, classifies them, and feeds out
// until the connection ends. Binary and unrecognized control frames are
// silently dropped, matching the client-recv filter_map in the reference
// proxy. A read error ends the pump: it is reported once (as a close event
// for a normal close, otherwise as a read error) and followed by the End
// event. The bridge treats socket read errors as non-fatal and leaves the
// transition to Draining to that End event.
func readSocket(conn *websocket.Conn, out chan<- socketEvent) {
	conn.SetPongHandler(func(string) error {
		out <- socketEvent{kind: eventPong}
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				out <- socketEvent{kind: eventClose}
			} else {
				out <- socketEvent{kind: eventReadError, err: err}
			}
			out <- socketEvent{kind: eventEnd}
			return
		}

		if msgType != websocket.TextMessage {
			// Binary frames carry no LSP content; gorilla already handles
			// close/ping/pong control frames before ReadMessage returns.
			continue
		}

		env, perr := lspenvelope.Parse(data)
		if perr != nil {
			out <- socketEvent{kind: eventRaw, raw: string(data), err: perr}
			continue
		}
		out <- socketEvent{kind: eventLspMessage, env: env}
	}
}

// sendText writes one text frame to the client with the bridge's standard
// write deadline.
func sendText(conn *websocket.Conn, text string) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func sendPing(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.PingMessage, nil)
}

func sendClose(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
