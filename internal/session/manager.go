package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// managed is a running session and the cancel func of its Run goroutine.
type managed[T comparable] struct {
	session *Session[T]
	cancel  context.CancelFunc
}

// Manager is a caller-owned registry of running sessions.
//
// Each session created by the Manager runs in its own goroutine until it is
// destroyed or the Manager is closed. Sessions share the Manager's options,
// so they also share its Metrics and Recorder.
type Manager[T comparable] struct {
	ids     IDGenerator
	opts    []Option
	metrics *Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*managed[T]
	closed   bool
	wg       sync.WaitGroup
}

// NewManager creates a Manager. A nil ids uses UUIDv7Generator.
func NewManager[T comparable](ids IDGenerator, opts ...Option) *Manager[T] {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = NewMetrics(nil)
		opts = append(slices.Clone(opts), WithMetrics(cfg.metrics))
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return &Manager[T]{
		ids:      ids,
		opts:     opts,
		metrics:  cfg.metrics,
		logger:   cfg.logger,
		sessions: make(map[string]*managed[T]),
	}
}

// Create starts a new session. The session outlives ctx's cancellation but
// keeps its values; it ends on Destroy or Close.
func (m *Manager[T]) Create(ctx context.Context) (*Session[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrSessionClosed
	}

	id := m.ids.Generate()
	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("create session: duplicate id %q", id)
	}

	opts := append(slices.Clone(m.opts), WithID(id))
	s := New[T](opts...)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.sessions[id] = &managed[T]{session: s, cancel: cancel}
	m.metrics.ActiveSessions.Inc()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := s.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("session run failed", "session", id, "err", err)
		}
	}()

	m.logger.Info("session created", "session", id)
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager[T]) Get(id string) (*Session[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return entry.session, nil
}

// Destroy stops a session and forgets it. Its subscribers' streams close.
func (m *Manager[T]) Destroy(id string) error {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	entry.session.Stop()
	entry.cancel()
	<-entry.session.Done()
	m.metrics.ActiveSessions.Dec()
	m.logger.Info("session destroyed", "session", id)
	return nil
}

// IDs returns the ids of all live sessions in sorted order.
func (m *Manager[T]) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of live sessions.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close destroys every session and waits for their goroutines.
// Create fails after Close.
func (m *Manager[T]) Close() {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Destroy(id)
	}
	m.wg.Wait()
}
