package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/animlist/internal/ir"
	"github.com/roach88/animlist/internal/listdiff"
	"github.com/roach88/animlist/internal/testutil"
)

var discard = slog.New(slog.DiscardHandler)

// collector records frames synchronously, in emission order.
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

func (c *collector) last() ir.Frame[string] {
	all := c.all()
	if len(all) == 0 {
		return ir.Frame[string]{}
	}
	return all[len(all)-1]
}

type harness struct {
	t       *testing.T
	s       *Session[string]
	timer   *testutil.ManualTimer
	rec     *collector
	metrics *Metrics
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		timer:   testutil.NewManualTimer(time.Unix(0, 0)),
		rec:     &collector{},
		metrics: NewMetrics(nil),
	}
	base := []Option{
		WithID("s1"),
		WithTimer(h.timer),
		WithRecorder[string](h.rec),
		WithLogger(discard),
		WithMetrics(h.metrics),
	}
	h.s = New[string](append(base, opts...)...)
	return h
}

func (h *harness) start() *harness {
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.s.Run(ctx) }()
	h.t.Cleanup(func() {
		cancel()
		<-h.s.Done()
	})
	return h
}

func (h *harness) sync() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(h.t, h.s.Sync(ctx))
}

func (h *harness) submit(keys ...string) {
	h.t.Helper()
	require.NoError(h.t, h.s.Submit(testutil.Items(keys...)))
	h.sync()
}

func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	h.timer.Advance(d)
	h.sync()
}

// settle brings the session to a settled list of keys.
func (h *harness) settle(keys ...string) {
	h.t.Helper()
	h.submit(keys...)
	h.advance(h.s.Duration())
	require.Equal(h.t, keys, listdiff.Keys(h.s.Settled()))
}

func kinds(frames []ir.Frame[string]) []ir.FrameKind {
	out := make([]ir.FrameKind, len(frames))
	for i, f := range frames {
		out[i] = f.Kind
	}
	return out
}

func TestSession_Bootstrap(t *testing.T) {
	h := newHarness(t).start()

	h.submit("a", "b")
	frames := h.rec.all()
	require.Len(t, frames, 1)
	assert.Equal(t, ir.FrameTransitional, frames[0].Kind)
	assert.Equal(t, []string{"a:INITIAL", "b:INITIAL"}, frames[0].States())
	assert.Equal(t, 400*time.Millisecond, frames[0].Duration)
	assert.Empty(t, h.s.Settled(), "nothing is committed before the delay")

	h.advance(400 * time.Millisecond)
	frames = h.rec.all()
	require.Len(t, frames, 2)
	assert.Equal(t, ir.FrameSettled, frames[1].Kind)
	assert.Equal(t, []string{"a:IDLE", "b:IDLE"}, frames[1].States())
	assert.Equal(t, []string{"a", "b"}, listdiff.Keys(h.s.Settled()))
}

func TestSession_RemoveScenario(t *testing.T) {
	h := newHarness(t).start()
	h.settle("a", "b", "c")

	h.submit("a", "c")
	assert.Equal(t, []string{"a:IDLE", "b:REMOVED", "c:IDLE"}, h.rec.last().States())

	h.advance(400 * time.Millisecond)
	assert.Equal(t, []string{"a:IDLE", "c:IDLE"}, h.rec.last().States())
	assert.Equal(t, ir.FrameSettled, h.rec.last().Kind)
}

func TestSession_MoveScenario(t *testing.T) {
	h := newHarness(t).start()
	h.settle("a", "b")

	h.submit("b", "a")
	assert.Equal(t, []string{"b:IDLE", "a-temp:REMOVED", "a:INSERTED"}, h.rec.last().States())

	h.advance(400 * time.Millisecond)
	assert.Equal(t, []string{"b:IDLE", "a:IDLE"}, h.rec.last().States())
}

func TestSession_MoveScenarioReverseLayout(t *testing.T) {
	h := newHarness(t, WithReverseLayout(true), WithGhostSuffix("~")).start()
	h.settle("a", "b")

	h.submit("b", "a")
	assert.Equal(t, []string{"a~:REMOVED", "b:IDLE", "a:INSERTED"}, h.rec.last().States())
}

func TestSession_IdempotentSubmit(t *testing.T) {
	h := newHarness(t).start()
	h.settle("a", "b")
	before := len(h.rec.all())

	h.submit("a", "b")

	assert.Len(t, h.rec.all(), before, "an unchanged list emits no frame")
	assert.Equal(t, 0, h.timer.Pending(), "no timer is armed")
	assert.Equal(t, []string{"a", "b"}, listdiff.Keys(h.s.Settled()))
}

func TestSession_IdempotentSubmitWhilePending(t *testing.T) {
	h := newHarness(t).start()
	h.settle("a", "b")

	h.submit("a", "c")
	before := len(h.rec.all())
	h.advance(300 * time.Millisecond)

	h.submit("a", "c")
	assert.Len(t, h.rec.all(), before, "resubmitting the pending list emits no frame")
	assert.Equal(t, 1, h.timer.Pending(), "the original settle timer stays armed")
	assert.Equal(t, 0.0, promtest.ToFloat64(h.metrics.CancelledUpdates))

	// The settle fires at the original deadline, 400ms after the first submit.
	h.advance(100 * time.Millisecond)
	last := h.rec.last()
	assert.Equal(t, ir.FrameSettled, last.Kind)
	assert.Equal(t, []string{"a:IDLE", "c:IDLE"}, last.States())
	assert.Equal(t, []string{"a", "c"}, listdiff.Keys(h.s.Settled()))
}

func TestSession_AllRemoved(t *testing.T) {
	h := newHarness(t).start()
	h.settle("a", "b", "c")

	h.submit()
	assert.Equal(t, []string{"a:ALL_REMOVED", "b:ALL_REMOVED", "c:ALL_REMOVED"}, h.rec.last().States())

	h.advance(400 * time.Millisecond)
	last := h.rec.last()
	assert.Equal(t, ir.FrameSettled, last.Kind)
	assert.Empty(t, last.Items)
	assert.Empty(t, h.s.Settled())

	// Refilling an emptied list is a fresh first appearance.
	h.submit("x")
	assert.Equal(t, []string{"x:INITIAL"}, h.rec.last().States())
}

func TestSession_CancellationSafety(t *testing.T) {
	h := newHarness(t).start()
	h.settle("a", "b", "c")

	h.submit("a", "c")
	h.advance(200 * time.Millisecond)

	// The second update is diffed against the last settled list, not a,c.
	h.submit("a", "b", "c", "d")
	assert.Equal(t, []string{"a:IDLE", "b:IDLE", "c:IDLE", "d:INSERTED"}, h.rec.last().States())
	assert.Equal(t, []string{"a", "b", "c"}, listdiff.Keys(h.s.Settled()), "a cancelled update never commits")
	assert.Equal(t, 1, h.timer.Pending(), "the cancelled settle timer is stopped")

	// 400ms after the first update: its settle would have been due.
	h.advance(200 * time.Millisecond)
	assert.Equal(t, ir.FrameTransitional, h.rec.last().Kind)

	h.advance(200 * time.Millisecond)
	assert.Equal(t, []string{"a:IDLE", "b:IDLE", "c:IDLE", "d:IDLE"}, h.rec.last().States())

	for _, f := range h.rec.all() {
		if f.Kind == ir.FrameSettled {
			assert.NotEqual(t, []string{"a:IDLE", "c:IDLE"}, f.States(), "cancelled settled frame was emitted")
		}
	}
	assert.Equal(t, []ir.FrameKind{
		ir.FrameTransitional, ir.FrameSettled,
		ir.FrameTransitional,
		ir.FrameTransitional, ir.FrameSettled,
	}, kinds(h.rec.all()))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.CancelledUpdates))
}

func TestSession_CancelledThenReverted(t *testing.T) {
	h := newHarness(t).start()
	h.settle("a", "b")

	h.submit("a")
	require.Equal(t, []string{"a:IDLE", "b:REMOVED"}, h.rec.last().States())

	// Going back to the settled list restores it at once.
	h.submit("a", "b")
	last := h.rec.last()
	assert.Equal(t, ir.FrameSettled, last.Kind)
	assert.Equal(t, []string{"a:IDLE", "b:IDLE"}, last.States())
	assert.Equal(t, 0, h.timer.Pending())
}

func TestSession_ValueChangeOnly(t *testing.T) {
	h := newHarness(t).start()
	h.settle("a")

	require.NoError(t, h.s.Submit([]ir.KeyedItem[string]{{Key: "a", Value: "changed"}}))
	h.sync()

	last := h.rec.last()
	assert.Equal(t, ir.FrameTransitional, last.Kind)
	assert.Equal(t, []string{"a:IDLE"}, last.States())
	assert.Equal(t, "changed", last.Items[0].Item.Value)
}

func TestSession_InvalidListRejected(t *testing.T) {
	h := newHarness(t).start()
	h.settle("a")
	before := len(h.rec.all())

	err := h.s.Submit(testutil.Items("x", "y", "x"))
	require.Error(t, err)
	assert.True(t, listdiff.IsInvalidList(err))

	var ie *listdiff.InvalidListError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "x", ie.Key)

	h.sync()
	assert.Len(t, h.rec.all(), before)
	assert.Equal(t, []string{"a"}, listdiff.Keys(h.s.Settled()))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.InvalidSubmissions))
}

func TestSession_SubmitCopiesSnapshot(t *testing.T) {
	h := newHarness(t).start()

	items := testutil.Items("a", "b")
	require.NoError(t, h.s.Submit(items))
	items[0].Key = "mutated"
	h.sync()

	assert.Equal(t, []string{"a:INITIAL", "b:INITIAL"}, h.rec.last().States())
}

func TestSession_CoalescesQueuedSubmissions(t *testing.T) {
	h := newHarness(t)

	// Queue before the actor runs so all three land in one batch.
	require.NoError(t, h.s.Submit(testutil.Items("a")))
	require.NoError(t, h.s.Submit(testutil.Items("a", "b")))
	require.NoError(t, h.s.Submit(testutil.Items("c")))
	h.start()
	h.sync()

	frames := h.rec.all()
	require.Len(t, frames, 1)
	assert.Equal(t, []string{"c:INITIAL"}, frames[0].States())
	assert.Equal(t, 2.0, promtest.ToFloat64(h.metrics.CancelledUpdates))
	assert.Equal(t, 3.0, promtest.ToFloat64(h.metrics.Submissions))
}

func TestSession_FrameSequenceAndDigest(t *testing.T) {
	h := newHarness(t).start()
	h.settle("a", "b")
	h.submit("b", "a")
	h.advance(400 * time.Millisecond)

	frames := h.rec.all()
	require.Len(t, frames, 4)
	for i, f := range frames {
		assert.Equal(t, int64(i+1), f.Seq)
		assert.Equal(t, "s1", f.Session)
		assert.Len(t, f.Digest, 64)
	}
	assert.NotEqual(t, frames[1].Digest, frames[2].Digest)

	want, err := ir.FrameDigest(frames[3].Kind, frames[3].Items)
	require.NoError(t, err)
	assert.Equal(t, want, frames[3].Digest)

	assert.Equal(t, 2.0, promtest.ToFloat64(h.metrics.FramesEmitted.WithLabelValues("transitional")))
	assert.Equal(t, 2.0, promtest.ToFloat64(h.metrics.FramesEmitted.WithLabelValues("settled")))
}

func TestSession_ZeroDuration(t *testing.T) {
	h := newHarness(t, WithDuration(0)).start()

	h.submit("a")
	assert.Equal(t, []ir.FrameKind{ir.FrameTransitional, ir.FrameSettled}, kinds(h.rec.all()))
	assert.Equal(t, []string{"a"}, listdiff.Keys(h.s.Settled()))
}

func TestSession_Current(t *testing.T) {
	h := newHarness(t).start()

	_, ok := h.s.Current()
	assert.False(t, ok)

	h.submit("a")
	f, ok := h.s.Current()
	require.True(t, ok)
	assert.Equal(t, ir.FrameTransitional, f.Kind)

	f.Items[0].State = ir.StateRemoved
	again, _ := h.s.Current()
	assert.Equal(t, ir.StateInitial, again.Items[0].State, "Current returns a copy")
}

func TestSession_Subscribe(t *testing.T) {
	h := newHarness(t).start()
	h.settle("a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := h.s.Subscribe(ctx)

	first := receive(t, sub.Frames())
	assert.Equal(t, ir.FrameSettled, first.Kind, "a new subscriber starts from the latest frame")
	assert.Equal(t, 1, h.s.Subscribers())

	h.submit("a", "b")
	next := receive(t, sub.Frames())
	assert.Equal(t, []string{"a:IDLE", "b:INSERTED"}, next.States())

	sub.Close()
	sub.Close()
	_, open := <-sub.Frames()
	assert.False(t, open)
	assert.Equal(t, 0, h.s.Subscribers())
}

func TestSession_SubscribeEndsWithContext(t *testing.T) {
	h := newHarness(t).start()

	ctx, cancel := context.WithCancel(context.Background())
	sub := h.s.Subscribe(ctx)
	cancel()

	select {
	case _, open := <-sub.Frames():
		assert.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not end with its context")
	}
}

func TestSession_FramesIterator(t *testing.T) {
	h := newHarness(t).start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan []ir.FrameKind, 1)
	ready := make(chan struct{})
	go func() {
		var seen []ir.FrameKind
		for f := range h.s.Frames(ctx) {
			seen = append(seen, f.Kind)
			if len(seen) == 1 {
				close(ready)
			}
			if len(seen) == 2 {
				break
			}
		}
		got <- seen
	}()

	h.submit("a")
	<-ready
	h.advance(400 * time.Millisecond)

	select {
	case seen := <-got:
		assert.Equal(t, []ir.FrameKind{ir.FrameTransitional, ir.FrameSettled}, seen)
	case <-ctx.Done():
		t.Fatal("iterator did not finish")
	}
}

func TestSession_StopClosesEverything(t *testing.T) {
	h := newHarness(t).start()
	h.submit("a")

	sub := h.s.Subscribe(context.Background())
	receive(t, sub.Frames())

	h.s.Stop()
	select {
	case <-h.s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, open := <-sub.Frames()
	assert.False(t, open)
	assert.ErrorIs(t, h.s.Submit(testutil.Items("b")), ErrSessionClosed)
	assert.ErrorIs(t, h.s.Sync(context.Background()), ErrSessionClosed)
	assert.Equal(t, 0, h.timer.Pending(), "the pending settle is dropped")

	late := h.s.Subscribe(context.Background())
	_, open = <-late.Frames()
	assert.False(t, open, "subscribing to a stopped session yields a closed stream")
}

func TestSession_RunTwice(t *testing.T) {
	h := newHarness(t).start()
	h.sync()
	assert.Error(t, h.s.Run(context.Background()))
}

func TestSession_RecorderErrorsAreNotFatal(t *testing.T) {
	failing := RecorderFunc[string](func(context.Context, ir.Frame[string]) error {
		return errors.New("disk full")
	})
	h := newHarness(t, WithRecorder[string](failing)).start()

	h.submit("a")
	f, ok := h.s.Current()
	require.True(t, ok)
	assert.Equal(t, []string{"a:INITIAL"}, f.States())
}

func TestSession_MismatchedRecorderIgnored(t *testing.T) {
	rec := RecorderFunc[int](func(context.Context, ir.Frame[int]) error {
		t.Fatal("int recorder must not be called")
		return nil
	})
	h := newHarness(t, WithRecorder[int](rec)).start()
	h.submit("a")
}

func TestNew_Defaults(t *testing.T) {
	s := New[string]()
	assert.Len(t, s.ID(), 36, "default ids are UUIDs")
	assert.Equal(t, 400*time.Millisecond, s.Duration())

	s = New[string](WithDuration(-time.Second))
	assert.Equal(t, time.Duration(0), s.Duration())
}

func receive(t *testing.T, ch <-chan ir.Frame[string]) ir.Frame[string] {
	t.Helper()
	select {
	case f, ok := <-ch:
		require.True(t, ok, "stream closed")
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
		return ir.Frame[string]{}
	}
}
