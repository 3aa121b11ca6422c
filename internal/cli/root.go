package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/animlist/internal/config"
	"github.com/roach88/animlist/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Config and Logger are filled in before any subcommand runs.
	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the animlist CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "animlist",
		Short: "animlist - keyed list diffing and animation frames",
		Long: `animlist turns successive snapshots of a keyed list into animation
frames: a transitional frame tagging every item INITIAL, INSERTED, REMOVED
or IDLE, followed by a settled frame once the animation has played.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load(opts.ConfigFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			opts.Config = cfg

			level, _ := logging.ParseLevel(cfg.Log.Level)
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.Logger = logging.NewWithWriter(cmd.ErrOrStderr(), level, cfg.Log.Format)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./animlist.yaml)")

	// Add subcommands
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewDemoCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// config returns the loaded configuration, or the defaults when the command
// runs without the root command in front of it.
func (o *RootOptions) settings() *config.Config {
	if o.Config == nil {
		o.Config = config.Default()
	}
	return o.Config
}

func (o *RootOptions) log() *slog.Logger {
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o.Logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
