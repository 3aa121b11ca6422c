package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/animlist/internal/server"
	"github.com/roach88/animlist/internal/session"
	"github.com/roach88/animlist/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string // listen address; overrides server.addr
	Journal string // journal path; overrides journal.path
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve list sessions over HTTP",
		Long: `Serve list sessions over HTTP.

Routes:
  POST   /sessions              create a session
  GET    /sessions              list session ids
  GET    /sessions/{id}         session state
  DELETE /sessions/{id}         destroy a session
  PUT    /sessions/{id}/items   submit a snapshot
  GET    /sessions/{id}/frames  follow frames (Server-Sent Events)
  GET    /metrics               Prometheus metrics
  GET    /health                liveness

Examples:
  animlist serve
  animlist serve --addr :9090 --journal frames.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal frames to this SQLite file")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg := opts.settings()
	logger := opts.log()

	addr := opts.Addr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sessOpts := append(cfg.Animation.SessionOptions(),
		session.WithLogger(logger),
		session.WithMetrics(session.NewMetrics(reg)),
	)

	journal := opts.Journal
	if journal == "" {
		journal = cfg.Journal.Path
	}
	if journal != "" {
		st, err := store.Open(journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer st.Close()
		sessOpts = append(sessOpts, session.WithRecorder[string](store.NewRecorder[string](st)))
		logger.Info("journaling frames", "path", journal)
	}

	mgr := session.NewManager[string](nil, sessOpts...)
	defer mgr.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(mgr, reg, logger)
	readHeader := time.Duration(cfg.Server.ReadHeaderTimeout) * time.Millisecond
	if err := srv.ListenAndServe(ctx, addr, readHeader); err != nil {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	return nil
}
