package session

import (
	"sync/atomic"
	"time"
)

// Clock is the monotonic logical clock that stamps frames.
//
// Frames carry Seq values from this clock, never wall-clock timestamps, so a
// replayed scenario produces identical frames.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Timer is the source of the settle delay.
//
// After returns a channel that receives once d has elapsed, and a stop
// function that cancels the wait. Stop may be called more than once and after
// the wait fired.
type Timer interface {
	After(d time.Duration) (<-chan time.Time, func())
}

// WallTimer implements Timer on the runtime timer.
type WallTimer struct{}

// After implements Timer.
func (WallTimer) After(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}
