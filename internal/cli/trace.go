package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/animlist/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string // journal path; overrides the configured one
	Digest  string // find frames by digest instead of by session
	Verify  bool   // recompute and check every printed frame's digest
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [session]",
		Short: "Inspect journaled frames",
		Long: `Inspect the frame journal.

Without a session, lists every journaled session. With one, prints its
frames in order. --digest finds the frames carrying a digest in any session.
--verify recomputes each printed frame's digest from its stored states.

Exit codes:
  0 - Success
  1 - A digest did not verify, or nothing matched
  2 - Command error (no journal, unreadable journal)

Examples:
  animlist trace --journal frames.db
  animlist trace --journal frames.db demo --verify
  animlist trace --journal frames.db --digest 3f2a...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal to read")
	cmd.Flags().StringVar(&opts.Digest, "digest", "", "find frames with this digest")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "verify frame digests")

	return cmd
}

func runTrace(cmd *cobra.Command, opts *TraceOptions, args []string) error {
	path := opts.Journal
	if path == "" {
		path = opts.settings().Journal.Path
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no journal: pass --journal or set journal.path")
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	switch {
	case opts.Digest != "":
		recs, err := st.FindByDigest(ctx, opts.Digest)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to query journal", err)
		}
		if len(recs) == 0 {
			_ = opts.formatter(cmd).Error("NOT_FOUND", fmt.Sprintf("no frame with digest %s", opts.Digest), nil)
			return NewExitError(ExitFailure, "digest not found")
		}
		return printRecords(cmd, opts, recs)

	case len(args) == 1:
		recs, err := st.ReadFrames(ctx, args[0])
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read frames", err)
		}
		if len(recs) == 0 {
			_ = opts.formatter(cmd).Error("NOT_FOUND", fmt.Sprintf("no frames for session %s", args[0]), nil)
			return NewExitError(ExitFailure, "session not found")
		}
		return printRecords(cmd, opts, recs)

	default:
		return listSessions(ctx, cmd, opts, st)
	}
}

func listSessions(ctx context.Context, cmd *cobra.Command, opts *TraceOptions, st *store.Store) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	out := opts.formatter(cmd)
	if opts.Format == "json" {
		return out.Success(sessions)
	}

	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions journaled.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  frames=%d last_seq=%d duration=%s digest=%s\n",
			s.ID, s.Frames, s.LastSeq, s.Duration.Round(time.Millisecond), shortDigest(s.LastDigest))
	}
	return nil
}

// printRecords prints frames, one per line, and fails if any does not verify.
func printRecords(cmd *cobra.Command, opts *TraceOptions, recs []store.FrameRecord) error {
	out := opts.formatter(cmd)
	failed := 0
	for _, rec := range recs {
		if err := out.Frame(recordLine(rec)); err != nil {
			return err
		}
		if !opts.Verify {
			continue
		}
		if err := rec.Verify(); err != nil {
			failed++
			opts.log().Warn("frame failed verification", "session", rec.Session, "seq", rec.Seq, "err", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %v\n", err)
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d frames failed verification", failed, len(recs)))
	}
	if opts.Verify {
		out.VerboseLog("%d frames verified", len(recs))
	}
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
