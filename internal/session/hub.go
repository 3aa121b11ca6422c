package session

import (
	"context"
	"sync"

	"github.com/roach88/animlist/internal/ir"
)

// subscriberBuffer is the per-subscriber channel capacity. When it is full
// the oldest undelivered frame is replaced by the newest.
const subscriberBuffer = 1

// hub fans frames out to subscribers. publish is only called by the session
// actor; subscribe and Close may be called from anywhere.
type hub[T comparable] struct {
	mu     sync.Mutex
	latest *ir.Frame[T]
	subs   map[*Subscription[T]]struct{}
	closed bool
	onDrop func()
}

func newHub[T comparable](onDrop func()) *hub[T] {
	return &hub[T]{
		subs:   make(map[*Subscription[T]]struct{}),
		onDrop: onDrop,
	}
}

// Subscription is one reader of a session's frames.
type Subscription[T comparable] struct {
	ch   chan ir.Frame[T]
	hub  *hub[T]
	done chan struct{}
	once sync.Once
}

// Frames returns the frame channel. It yields the latest frame known at
// subscription time, then every later frame, and is closed when the
// subscription or the session ends.
//
// Frames share their Items slice with other subscribers; treat it as
// read-only.
func (s *Subscription[T]) Frames() <-chan ir.Frame[T] {
	return s.ch
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.done)
	})
}

func (h *hub[T]) subscribe(ctx context.Context) *Subscription[T] {
	sub := &Subscription[T]{
		ch:   make(chan ir.Frame[T], subscriberBuffer),
		hub:  h,
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		close(sub.ch)
		h.mu.Unlock()
		return sub
	}
	h.subs[sub] = struct{}{}
	if h.latest != nil {
		sub.ch <- *h.latest
	}
	h.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub
}

func (h *hub[T]) remove(sub *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

func (h *hub[T]) publish(f ir.Frame[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.latest = &f
	for sub := range h.subs {
		h.offer(sub, f)
	}
}

// offer delivers f without blocking. The caller holds h.mu, so no other
// sender can refill the buffer between the two selects.
func (h *hub[T]) offer(sub *Subscription[T], f ir.Frame[T]) {
	select {
	case sub.ch <- f:
		return
	default:
	}

	dropped := false
	select {
	case <-sub.ch:
		dropped = true
	default:
	}
	select {
	case sub.ch <- f:
	default:
	}
	if dropped && h.onDrop != nil {
		h.onDrop()
	}
}

func (h *hub[T]) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

func (h *hub[T]) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
