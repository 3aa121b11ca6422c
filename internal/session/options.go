package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/animlist/internal/ir"
	"github.com/roach88/animlist/internal/reconcile"
)

// Recorder receives every emitted frame synchronously, in emission order.
// A failing Recorder is logged and does not stop the session.
type Recorder[T comparable] interface {
	Record(ctx context.Context, f ir.Frame[T]) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc[T comparable] func(ctx context.Context, f ir.Frame[T]) error

// Record implements Recorder.
func (fn RecorderFunc[T]) Record(ctx context.Context, f ir.Frame[T]) error {
	return fn(ctx, f)
}

// config collects options. It is not generic so that options can be shared
// between a Manager and the sessions it creates.
type config struct {
	id       string
	duration time.Duration
	opts     reconcile.Options
	timer    Timer
	logger   *slog.Logger
	metrics  *Metrics
	recorder any
}

func defaultConfig() config {
	return config{
		duration: reconcile.DefaultDuration,
		timer:    WallTimer{},
		logger:   slog.Default(),
	}
}

// Option configures a Session.
type Option func(*config)

// WithID sets the session id. Sessions without one get a UUIDv7.
func WithID(id string) Option {
	return func(c *config) { c.id = id }
}

// WithDuration sets the animation duration. Negative values mean zero.
func WithDuration(d time.Duration) Option {
	return func(c *config) { c.duration = max(0, d) }
}

// WithReverseLayout places move ghosts before their source position.
func WithReverseLayout(reverse bool) Option {
	return func(c *config) { c.opts.ReverseLayout = reverse }
}

// WithGhostSuffix sets the suffix that decorates ghost keys.
func WithGhostSuffix(suffix string) Option {
	return func(c *config) { c.opts.GhostSuffix = suffix }
}

// WithIndexLookup renders removals by clamped index instead of by item.
func WithIndexLookup(enabled bool) Option {
	return func(c *config) { c.opts.IndexLookup = enabled }
}

// WithTimer injects the settle delay source.
func WithTimer(t Timer) Option {
	return func(c *config) { c.timer = t }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithRecorder attaches a frame sink. Its type parameter must match the
// session's; a mismatched recorder is ignored with a warning.
func WithRecorder[T comparable](r Recorder[T]) Option {
	return func(c *config) { c.recorder = r }
}
