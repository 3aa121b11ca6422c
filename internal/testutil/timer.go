package testutil

import (
	"sync"
	"time"
)

// ManualTimer is a timer source whose time only moves when a test calls
// Advance.
//
// It satisfies the session Timer interface structurally, so tests can hold a
// settle delay open for as long as they like and cancel it mid-flight.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualTimer struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

// NewManualTimer creates a timer whose clock starts at start.
func NewManualTimer(start time.Time) *ManualTimer {
	return &ManualTimer{now: start}
}

// After returns a channel that receives the current time once the clock has
// been advanced by d, and a function that cancels the wait.
//
// A non-positive d fires immediately.
func (m *ManualTimer) After(d time.Duration) (<-chan time.Time, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := &waiter{at: m.now.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		w.ch <- m.now
		return w.ch, func() {}
	}
	m.waiters = append(m.waiters, w)
	return w.ch, func() { m.stop(w) }
}

func (m *ManualTimer) stop(w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.waiters {
		if x == w {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d and fires every wait that is due.
// It returns the number of waits fired.
func (m *ManualTimer) Advance(d time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = m.now.Add(d)
	fired := 0
	kept := m.waiters[:0]
	for _, w := range m.waiters {
		if w.at.After(m.now) {
			kept = append(kept, w)
			continue
		}
		w.ch <- m.now
		fired++
	}
	m.waiters = kept
	return fired
}

// Pending returns the number of waits not yet fired or stopped.
func (m *ManualTimer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

// Now returns the current manual time.
func (m *ManualTimer) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}
