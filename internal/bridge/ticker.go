package bridge

import "time"

// ticker is a thin wrapper so bridge.go reads like the rest of the
// event-source plumbing (socketEvents, childEvents, ticker.c) without
// reaching for time.Ticker's own field name.
type ticker struct {
	t *time.Ticker
	c <-chan time.Time
}

func newTicker(period time.Duration) *ticker {
	t := time.NewTicker(period)
	return &ticker{t: t, c: t.C}
}

func (tk *ticker) stop() {
	tk.t.Stop()
}
