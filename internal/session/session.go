package session

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/animlist/internal/ir"
	"github.com/roach88/animlist/internal/listdiff"
	"github.com/roach88/animlist/internal/reconcile"
)

// Session serializes updates of one keyed list and emits animation frames.
//
// All state transitions happen in Run; Submit, Subscribe and the accessors
// are safe to call from any goroutine.
type Session[T comparable] struct {
	id         string
	reconciler reconcile.Reconciler[T]
	timer      Timer
	logger     *slog.Logger
	metrics    *Metrics
	recorder   Recorder[T]
	clock      *Clock
	inbox      *inbox[T]
	hub        *hub[T]
	done       chan struct{}
	runOnce    sync.Once

	// mu guards the fields below. They are written only by the actor.
	mu         sync.Mutex
	settled    []ir.KeyedItem[T]
	current    ir.Frame[T]
	hasCurrent bool
}

// job is an update whose settled frame is still pending.
type job[T comparable] struct {
	items []ir.KeyedItem[T]
	plan  reconcile.Plan[T]
	fire  <-chan time.Time
	stop  func()
}

// New creates a session. It does nothing until the caller runs Run.
func New[T comparable](opts ...Option) *Session[T] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = UUIDv7Generator{}.Generate()
	}
	if cfg.metrics == nil {
		cfg.metrics = NewMetrics(nil)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	s := &Session[T]{
		id: cfg.id,
		reconciler: reconcile.Reconciler[T]{
			Options:  cfg.opts,
			Duration: cfg.duration,
		},
		timer:   cfg.timer,
		logger:  cfg.logger.With("session", cfg.id),
		metrics: cfg.metrics,
		clock:   NewClock(),
		inbox:   newInbox[T](),
		done:    make(chan struct{}),
	}
	s.hub = newHub[T](s.metrics.DroppedFrames.Inc)

	if cfg.recorder != nil {
		rec, ok := cfg.recorder.(Recorder[T])
		if !ok {
			s.logger.Warn("recorder ignored: item type mismatch",
				"recorder", fmt.Sprintf("%T", cfg.recorder))
		}
		s.recorder = rec
	}
	return s
}

// ID returns the session id.
func (s *Session[T]) ID() string {
	return s.id
}

// Duration returns the animation duration.
func (s *Session[T]) Duration() time.Duration {
	return s.reconciler.Duration
}

// Submit validates a snapshot and queues it for the actor.
//
// A snapshot with duplicate keys is rejected with a *listdiff.InvalidListError
// and leaves the session untouched. The snapshot is copied, so the caller may
// reuse its slice.
func (s *Session[T]) Submit(items []ir.KeyedItem[T]) error {
	if err := listdiff.Validate(items); err != nil {
		s.metrics.InvalidSubmissions.Inc()
		s.logger.Warn("submission rejected", "err", err)
		return fmt.Errorf("submit: %w", err)
	}

	snapshot := slices.Clone(items)
	if snapshot == nil {
		snapshot = []ir.KeyedItem[T]{}
	}
	if !s.inbox.Enqueue(request[T]{items: snapshot}) {
		return ErrSessionClosed
	}
	s.metrics.Submissions.Inc()
	return nil
}

// Sync blocks until the actor has handled every submission queued before the
// call and any settle timer that fired before it. It returns ErrSessionClosed
// if the session stops first.
func (s *Session[T]) Sync(ctx context.Context) error {
	barrier := make(chan struct{})
	if !s.inbox.Enqueue(request[T]{barrier: barrier}) {
		return ErrSessionClosed
	}
	select {
	case <-barrier:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a subscription that first yields the latest frame, if
// any, and then every later frame. It ends when ctx is done, when Close is
// called, or when the session stops.
func (s *Session[T]) Subscribe(ctx context.Context) *Subscription[T] {
	return s.hub.subscribe(ctx)
}

// Frames returns the subscription as an iterator.
func (s *Session[T]) Frames(ctx context.Context) iter.Seq[ir.Frame[T]] {
	return func(yield func(ir.Frame[T]) bool) {
		sub := s.Subscribe(ctx)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-sub.Frames():
				if !ok || !yield(f) {
					return
				}
			}
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Session[T]) Subscribers() int {
	return s.hub.count()
}

// Settled returns a copy of the last settled list.
func (s *Session[T]) Settled() []ir.KeyedItem[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.settled)
}

// Current returns the most recently emitted frame.
func (s *Session[T]) Current() (ir.Frame[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.current
	f.Items = slices.Clone(f.Items)
	return f, s.hasCurrent
}

// Done is closed when Run returns.
func (s *Session[T]) Done() <-chan struct{} {
	return s.done
}

// Stop closes the inbox. Run handles what was already queued and returns;
// a pending settle is dropped.
func (s *Session[T]) Stop() {
	s.inbox.Close()
}

// Run is the session actor. It blocks until ctx is cancelled or Stop is
// called, and must be called from exactly one goroutine.
func (s *Session[T]) Run(ctx context.Context) error {
	started := false
	s.runOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("session %s: Run called twice", s.id)
	}
	defer close(s.done)
	defer s.hub.close()

	s.logger.Debug("session starting", "duration", s.reconciler.Duration)

	var pending *job[T]
	defer func() {
		if pending != nil {
			pending.stop()
		}
	}()

	for {
		// A settle that is already due goes before newer requests.
		pending = s.settleIfDue(ctx, pending)

		if batch := s.inbox.Drain(); batch != nil {
			var barriers []chan struct{}
			pending, barriers = s.handle(ctx, batch, pending)
			pending = s.settleIfDue(ctx, pending)
			for _, b := range barriers {
				close(b)
			}
			continue
		}

		var fire <-chan time.Time
		if pending != nil {
			fire = pending.fire
		}

		select {
		case <-ctx.Done():
			s.logger.Debug("session stopping: context cancelled")
			s.inbox.Close()
			return ctx.Err()

		case <-s.inbox.Wait():
			if s.inbox.Done() {
				s.logger.Debug("session stopping: inbox closed")
				return nil
			}

		case <-fire:
			s.settle(ctx, pending)
			pending = nil
		}
	}
}

// settleIfDue settles j if its timer already fired and returns what is
// still pending.
func (s *Session[T]) settleIfDue(ctx context.Context, j *job[T]) *job[T] {
	if j == nil {
		return nil
	}
	select {
	case <-j.fire:
		s.settle(ctx, j)
		return nil
	default:
		return j
	}
}

// handle coalesces a batch to its newest snapshot. It returns the pending
// job and the barriers to release.
func (s *Session[T]) handle(ctx context.Context, batch []request[T], pending *job[T]) (*job[T], []chan struct{}) {
	var latest []ir.KeyedItem[T]
	found := false
	var barriers []chan struct{}

	for _, r := range batch {
		if r.barrier != nil {
			barriers = append(barriers, r.barrier)
			continue
		}
		if found {
			s.metrics.CancelledUpdates.Inc()
			s.logger.Debug("submission superseded before processing", "items", len(latest))
		}
		latest, found = r.items, true
	}

	if found {
		pending = s.update(ctx, latest, pending)
	}
	return pending, barriers
}

// update diffs items against the settled list, cancelling pending first.
func (s *Session[T]) update(ctx context.Context, items []ir.KeyedItem[T], pending *job[T]) *job[T] {
	if pending != nil && sameItems(pending.items, items) {
		s.logger.Debug("submission matches pending update, no frame")
		return pending
	}

	cancelled := pending != nil
	if cancelled {
		pending.stop()
		s.metrics.CancelledUpdates.Inc()
		s.logger.Debug("pending update cancelled", "items", len(pending.items))
	}

	script, err := listdiff.Diff(s.settled, items)
	if err != nil {
		// Submit validates, so only a corrupted settled list gets here.
		s.logger.Error("diff failed", "err", err)
		return nil
	}

	if script.IsEmpty() {
		if cancelled {
			s.emit(ctx, ir.FrameSettled, reconcile.Settled(s.settled), 0)
		} else {
			s.logger.Debug("submission unchanged, no frame")
		}
		return nil
	}

	plan := s.reconciler.Reconcile(s.settled, items, script)
	fire, stop := s.timer.After(plan.Delay)
	s.logger.Debug("update planned",
		"inserted", len(script.Inserted),
		"removed", len(script.Removed),
		"moved", len(script.Moved),
		"changed", len(script.Changed),
		"all_removed", script.AllRemoved,
	)
	s.emit(ctx, ir.FrameTransitional, plan.Transitional, plan.Delay)

	return &job[T]{items: items, plan: plan, fire: fire, stop: stop}
}

// sameItems compares snapshots by key and value. Payloads are ignored.
func sameItems[T comparable](a, b []ir.KeyedItem[T]) bool {
	return slices.EqualFunc(a, b, func(x, y ir.KeyedItem[T]) bool {
		return x.Key == y.Key && x.Value == y.Value
	})
}

// settle commits a job's list and emits its settled frame.
func (s *Session[T]) settle(ctx context.Context, j *job[T]) {
	s.mu.Lock()
	s.settled = j.items
	s.mu.Unlock()
	s.emit(ctx, ir.FrameSettled, j.plan.Settled, 0)
}

func (s *Session[T]) emit(ctx context.Context, kind ir.FrameKind, items []ir.AnimatedItem[T], d time.Duration) {
	digest, err := ir.FrameDigest(kind, items)
	if err != nil {
		s.logger.Error("frame digest failed", "kind", kind, "err", err)
	}

	f := ir.Frame[T]{
		Session:  s.id,
		Seq:      s.clock.Next(),
		Kind:     kind,
		Items:    items,
		Duration: d,
		Digest:   digest,
	}

	s.mu.Lock()
	s.current = f
	s.hasCurrent = true
	s.mu.Unlock()

	s.metrics.FramesEmitted.WithLabelValues(string(kind)).Inc()
	s.logger.Debug("frame emitted", "seq", f.Seq, "kind", kind, "items", len(items))

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, f); err != nil {
			s.logger.Warn("failed to record frame", "seq", f.Seq, "err", err)
		}
	}
	s.hub.publish(f)
}
