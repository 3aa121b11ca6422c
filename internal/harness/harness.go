package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/animlist/internal/ir"
	"github.com/roach88/animlist/internal/listdiff"
	"github.com/roach88/animlist/internal/session"
	"github.com/roach88/animlist/internal/testutil"
)

// epoch is where every manual timer starts, so runs are reproducible.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness runs scenarios.
type Harness struct {
	logger    *slog.Logger
	metrics   *session.Metrics
	recorders []session.Recorder[string]
	realTime  bool
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to each session.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithMetrics shares one metrics set between runs.
func WithMetrics(m *session.Metrics) Option {
	return func(h *Harness) { h.metrics = m }
}

// WithRecorder adds a recorder that sees every frame of every run, after the
// harness's own collector.
func WithRecorder(r session.Recorder[string]) Option {
	return func(h *Harness) { h.recorders = append(h.recorders, r) }
}

// WithRealTime runs the session on the wall clock: advance steps sleep
// instead of moving a manual timer. Expectations that race a settle timer
// may then be flaky; use it to watch a scenario, not to test one.
func WithRealTime() Option {
	return func(h *Harness) { h.realTime = true }
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario on a fresh session and returns the result.
//
// Failed expectations are reported in the result; the error is reserved for
// runs that could not complete.
func (h *Harness) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	col := &collector{}
	manual := testutil.NewManualTimer(epoch)
	var timer session.Timer = manual
	if h.realTime {
		timer = session.WallTimer{}
	}

	opts := []session.Option{
		session.WithID(sc.SessionID()),
		session.WithDuration(sc.Duration()),
		session.WithReverseLayout(sc.ReverseLayout),
		session.WithGhostSuffix(sc.GhostSuffix),
		session.WithIndexLookup(sc.IndexLookup),
		session.WithTimer(timer),
		session.WithLogger(h.logger),
		session.WithRecorder[string](fanout(append([]session.Recorder[string]{col}, h.recorders...))),
	}
	if h.metrics != nil {
		opts = append(opts, session.WithMetrics(h.metrics))
	}
	sess := session.New[string](opts...)

	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(ctx) }()
	defer func() {
		sess.Stop()
		<-sess.Done()
	}()

	h.logger.Debug("scenario starting", "scenario", sc.Name, "steps", len(sc.Steps))

	res := NewResult(sc.Name, sess.ID())
	var slept time.Duration

	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}

		switch {
		case step.Submit != nil:
			err := sess.Submit(toItems(*step.Submit))
			switch {
			case step.Rejected && err == nil:
				res.AddError(fmt.Sprintf("steps[%d]: submit was accepted, want INVALID_LIST", i))
			case step.Rejected && !listdiff.IsInvalidList(err):
				res.AddError(fmt.Sprintf("steps[%d]: submit failed with %v, want INVALID_LIST", i, err))
			case !step.Rejected && err != nil:
				res.AddError(fmt.Sprintf("steps[%d]: submit rejected: %v", i, err))
			}

		case step.Advance != nil:
			d := time.Duration(*step.Advance) * time.Millisecond
			if err := h.advance(ctx, manual, d); err != nil {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}
			slept += d
		}

		if err := sess.Sync(ctx); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}

		// Expectations see the state after all earlier steps were handled.
		if step.Expect != nil {
			settled := listdiff.Keys(sess.Settled())
			for _, err := range check(i, *step.Expect, traceOf(col.all()), settled) {
				res.AddError(err.Error())
			}
		}
	}

	res.Trace = traceOf(col.all())
	res.Settled = listdiff.Keys(sess.Settled())
	res.Elapsed = manual.Now().Sub(epoch)
	if h.realTime {
		res.Elapsed = slept
	}

	select {
	case err := <-runErr:
		return nil, fmt.Errorf("session stopped early: %w", err)
	default:
	}

	h.logger.Debug("scenario finished", "scenario", sc.Name, "pass", res.Pass, "frames", len(res.Trace))
	return res, nil
}

func (h *Harness) advance(ctx context.Context, manual *testutil.ManualTimer, d time.Duration) error {
	if !h.realTime {
		manual.Advance(d)
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toItems(items []Item) []ir.KeyedItem[string] {
	out := make([]ir.KeyedItem[string], len(items))
	for i, it := range items {
		out[i] = ir.KeyedItem[string]{Key: it.Key, Value: it.Value}
	}
	return out
}

// collector keeps every frame in emission order.
type collector struct {
	mu     sync.Mutex
	frames []ir.Frame[string]
}

func (c *collector) Record(_ context.Context, f ir.Frame[string]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *collector) all() []ir.Frame[string] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ir.Frame[string](nil), c.frames...)
}

// fanout hands each frame to every recorder and returns the first error.
type fanout []session.Recorder[string]

func (fo fanout) Record(ctx context.Context, f ir.Frame[string]) error {
	var first error
	for _, r := range fo {
		if err := r.Record(ctx, f); err != nil && first == nil {
			first = err
		}
	}
	return first
}
