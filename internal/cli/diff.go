package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/animlist/internal/harness"
	"github.com/roach88/animlist/internal/ir"
	"github.com/roach88/animlist/internal/listdiff"
	"github.com/roach88/animlist/internal/reconcile"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Inline bool // arguments are comma-separated keys, not files
}

// DiffResult is what the diff command reports.
type DiffResult struct {
	Previous     []string      `json:"previous"`
	Current      []string      `json:"current"`
	Script       ir.EditScript `json:"script"`
	Transitional []string      `json:"transitional"`
	Settled      []string      `json:"settled"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <previous> <current>",
		Short: "Diff two list snapshots and show the frames they produce",
		Long: `Diff two snapshots of a keyed list.

Each snapshot is a YAML or JSON file holding a list of items, where an item
is a bare key or a {key, value} mapping. With --inline the arguments are
comma-separated keys instead.

Prints the edit script, the transitional frame and the settled frame, using
the animation settings from the configuration.

Exit codes:
  0 - Success
  1 - A snapshot has duplicate keys
  2 - Command error (unreadable file, bad YAML)

Examples:
  animlist diff before.yaml after.yaml
  animlist diff --inline a,b,c a,c,b
  animlist diff --inline a,b,c c,a --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.Inline, "inline", false, "read snapshots as comma-separated keys")

	return cmd
}

func runDiff(cmd *cobra.Command, opts *DiffOptions, prevArg, curArg string) error {
	out := opts.formatter(cmd)

	prev, err := opts.snapshot(prevArg)
	if err != nil {
		return err
	}
	cur, err := opts.snapshot(curArg)
	if err != nil {
		return err
	}

	script, err := listdiff.Diff(prev, cur)
	if err != nil {
		var ie *listdiff.InvalidListError
		if errors.As(err, &ie) {
			_ = out.Error("INVALID_LIST", err.Error(), map[string]any{"key": ie.Key})
		}
		return WrapExitError(ExitFailure, "diff failed", err)
	}

	anim := opts.settings().Animation
	frame := reconcile.Transitional(prev, cur, script, reconcile.Options{
		ReverseLayout: anim.ReverseLayout,
		GhostSuffix:   anim.GhostSuffix,
		IndexLookup:   anim.IndexLookup,
	})

	result := DiffResult{
		Previous:     listdiff.Keys(prev),
		Current:      listdiff.Keys(cur),
		Script:       script,
		Transitional: pairs(frame),
		Settled:      pairs(reconcile.Settled(cur)),
	}
	opts.log().Debug("diffed snapshots", "previous", len(prev), "current", len(cur), "empty", script.IsEmpty())

	if opts.Format == "json" {
		return out.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "inserted: %v\n", script.Inserted)
	fmt.Fprintf(w, "removed:  %v\n", script.Removed)
	fmt.Fprintf(w, "moved:    %s\n", formatMoves(script.Moved))
	fmt.Fprintf(w, "changed:  %v\n", script.Changed)
	if script.AllRemoved {
		fmt.Fprintln(w, "all removed")
	}
	fmt.Fprintf(w, "transitional: %s\n", strings.Join(result.Transitional, " "))
	fmt.Fprintf(w, "settled:      %s\n", strings.Join(result.Settled, " "))
	return nil
}

// snapshot reads one list argument.
func (o *DiffOptions) snapshot(arg string) ([]ir.KeyedItem[string], error) {
	if o.Inline {
		var items []ir.KeyedItem[string]
		for _, k := range strings.Split(arg, ",") {
			if k = strings.TrimSpace(k); k != "" {
				items = append(items, ir.KeyedItem[string]{Key: k, Value: k})
			}
		}
		return items, nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}
	var list []harness.Item
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to parse snapshot %s", arg), err)
	}
	items := make([]ir.KeyedItem[string], len(list))
	for i, it := range list {
		items[i] = ir.KeyedItem[string]{Key: it.Key, Value: it.Value}
	}
	return items, nil
}

func pairs(items []ir.AnimatedItem[string]) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Item.Key + ":" + it.State.String()
	}
	return out
}

func formatMoves(moves []ir.Move) string {
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = fmt.Sprintf("%d->%d", m.From, m.To)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
