package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/animlist/internal/harness"
	"github.com/roach88/animlist/internal/ir"
	"github.com/roach88/animlist/internal/session"
	"github.com/roach88/animlist/internal/store"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Instant bool   // run on a manual timer instead of the wall clock
	Journal string // journal path; overrides the configured one
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <scenario>",
		Short: "Play a scenario and print its frames",
		Long: `Play one scenario file (YAML or CUE) on a fresh session.

Frames are printed as they are emitted. Advance steps sleep on the wall
clock unless --instant is given. With a journal configured, every frame is
also written to it.

Exit codes:
  0 - Every expectation held
  1 - An expectation failed
  2 - Command error (unreadable scenario, journal error)

Examples:
  animlist play scenarios/swap.yaml
  animlist play scenarios/swap.yaml --instant --journal frames.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Instant, "instant", false, "advance a manual clock instead of sleeping")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal frames to this SQLite file")

	return cmd
}

func runPlay(cmd *cobra.Command, opts *PlayOptions, path string) error {
	out := opts.formatter(cmd)

	sc, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	hopts := []harness.Option{harness.WithLogger(opts.log())}
	if !opts.Instant {
		hopts = append(hopts, harness.WithRealTime())
	}
	if opts.Format != "json" {
		hopts = append(hopts, harness.WithRecorder(session.RecorderFunc[string](
			func(_ context.Context, f ir.Frame[string]) error {
				return out.Frame(frameLine(f))
			})))
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
		hopts = append(hopts, harness.WithRecorder(store.NewRecorder[string](st)))
		out.VerboseLog("journaling to %s", journal)
	}

	result, err := harness.New(hopts...).Run(cmd.Context(), sc)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario did not complete", err)
	}

	if opts.Format == "json" {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		if result.Pass {
			fmt.Fprintf(w, "✓ %s (%d frames)\n", result.Scenario, len(result.Trace))
		} else {
			fmt.Fprintf(w, "✗ %s\n", result.Scenario)
			for _, e := range result.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", result.Scenario))
	}
	return nil
}
