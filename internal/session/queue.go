package session

import (
	"sync"

	"github.com/roach88/animlist/internal/ir"
)

// request is one inbox entry: either a snapshot to reconcile or a barrier
// that the actor closes once everything queued before it has been handled.
type request[T comparable] struct {
	items   []ir.KeyedItem[T]
	barrier chan struct{}
}

// inbox is the thread-safe queue between Submit and the Run loop.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type inbox[T comparable] struct {
	mu     sync.Mutex
	reqs   []request[T]
	closed bool
	signal chan struct{} // Signals availability (buffered, size 1)
}

func newInbox[T comparable]() *inbox[T] {
	return &inbox[T]{
		reqs:   make([]request[T], 0, 8),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Returns false if the queue is closed.
func (q *inbox[T]) Enqueue(r request[T]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.reqs = append(q.reqs, r)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// Drain removes and returns every queued request in arrival order.
func (q *inbox[T]) Drain() []request[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.reqs) == 0 {
		return nil
	}
	out := q.reqs
	q.reqs = make([]request[T], 0, cap(out))
	return out
}

// Wait returns a channel that signals when requests may be available.
// The channel is closed once the queue is closed.
func (q *inbox[T]) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *inbox[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.reqs)
}

// Done reports whether the queue is closed and empty.
func (q *inbox[T]) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.reqs) == 0
}

// Close signals that no more requests will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *inbox[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
