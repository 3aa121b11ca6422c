package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/animlist/internal/demo"
	"github.com/roach88/animlist/internal/ir"
	"github.com/roach88/animlist/internal/session"
	"github.com/roach88/animlist/internal/store"
	"github.com/roach88/animlist/internal/testutil"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	Steps    int
	Seed     int64
	Interval time.Duration
	Instant  bool
	Session  string
	Journal  string
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Drive a session with random list edits",
		Long: `Edit an in-memory list at random (add, move, remove, clear) and feed
every snapshot to a session, printing the frames it emits.

An interval shorter than the animation duration shows pending settles being
cancelled by newer snapshots. --instant runs on a manual clock, so a seeded
run prints the same frames every time.

Examples:
  animlist demo
  animlist demo --steps 50 --seed 7 --instant
  animlist demo --interval 200ms --journal frames.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Steps, "steps", 20, "number of random edits")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "random seed")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 600*time.Millisecond, "time between edits")
	cmd.Flags().BoolVar(&opts.Instant, "instant", false, "advance a manual clock instead of sleeping")
	cmd.Flags().StringVar(&opts.Session, "session", "demo", "session id")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal frames to this SQLite file")

	return cmd
}

func runDemo(cmd *cobra.Command, opts *DemoOptions) error {
	if opts.Steps < 0 {
		return NewExitError(ExitCommandError, "--steps must be non-negative")
	}
	if opts.Interval < 0 {
		return NewExitError(ExitCommandError, "--interval must be non-negative")
	}

	// Frames arrive on the session goroutine while actions print here.
	w := &syncWriter{w: cmd.OutOrStdout()}
	out := opts.formatter(cmd)
	out.Writer = w

	recorders := []session.Recorder[string]{
		session.RecorderFunc[string](func(_ context.Context, f ir.Frame[string]) error {
			return out.Frame(frameLine(f))
		}),
	}

	journal := opts.Journal
	if journal == "" {
		journal = opts.settings().Journal.Path
	}
	if journal != "" {
		st, err := store.Open(journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer st.Close()
		recorders = append(recorders, store.NewRecorder[string](st))
	}

	var manual *testutil.ManualTimer
	var timer session.Timer = session.WallTimer{}
	if opts.Instant {
		manual = testutil.NewManualTimer(time.Unix(0, 0).UTC())
		timer = manual
	}

	sessOpts := append(opts.settings().Animation.SessionOptions(),
		session.WithID(opts.Session),
		session.WithTimer(timer),
		session.WithLogger(opts.log()),
		session.WithRecorder[string](session.RecorderFunc[string](func(ctx context.Context, f ir.Frame[string]) error {
			for _, r := range recorders {
				if err := r.Record(ctx, f); err != nil {
					return err
				}
			}
			return nil
		})),
	)
	sess := session.New[string](sessOpts...)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() { _ = sess.Run(ctx) }()
	defer func() {
		sess.Stop()
		<-sess.Done()
	}()

	list := demo.New(rand.New(rand.NewSource(opts.Seed)))
	for i := 0; i < opts.Steps; i++ {
		action, snapshot, err := list.Step()
		if err != nil {
			return fmt.Errorf("demo step %d: %w", i, err)
		}
		if opts.Format != "json" {
			fmt.Fprintf(w, "» %s (%d items)\n", action, len(snapshot))
		}

		if err := sess.Submit(snapshot); err != nil {
			return fmt.Errorf("demo step %d: %w", i, err)
		}
		if err := sess.Sync(ctx); err != nil {
			return err
		}

		if manual != nil {
			manual.Advance(opts.Interval)
			if err := sess.Sync(ctx); err != nil {
				return err
			}
			continue
		}
		select {
		case <-time.After(opts.Interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// syncWriter serializes writes from several goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
