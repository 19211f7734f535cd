package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/fintrack/internal/config"
	"github.com/roach88/fintrack/internal/feed"
	"github.com/roach88/fintrack/internal/ledger"
	"github.com/roach88/fintrack/internal/metrics"
	"github.com/roach88/fintrack/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen   string
	Prefetch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the stores over HTTP and WebSocket",
		Long: `Serve every store of the registry to external subscribers:

  GET  /stores, /stores/{name}         snapshots
  POST /stores/{name}/execute|reload   drive a store
  GET  /graph                          invalidation graph
  GET  /feed                           WebSocket state feed
  GET  /metrics                        Prometheus metrics
  GET  /flows, /flows/{token}          journal (when configured)

Stops gracefully on SIGINT or SIGTERM.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default "+config.DefaultListen+" or FINTRACK_LISTEN)")
	cmd.Flags().BoolVar(&opts.Prefetch, "prefetch", false, "warm every read store before serving")
	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(metrics.WithRegistry(promReg))

	s, err := opts.open(cmd, ledger.WithObserver(collector), ledger.WithListener(collector))
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.Prefetch {
		if err := s.registry.Prefetch(ctx, s.registry.DefaultPlan(s.cfg.Period)); err != nil {
			s.logger.Warn("prefetch incomplete", "error", err)
		}
	}

	fd := feed.New(s.registry, feed.WithLogger(s.logger))
	srvOpts := []server.Option{
		server.WithLogger(s.logger),
		server.WithGatherer(promReg),
		server.WithFeed(fd),
	}
	if s.journal != nil {
		srvOpts = append(srvOpts, server.WithJournal(s.journal))
	}

	listen := opts.Listen
	if listen == "" {
		listen = s.cfg.Listen
	}
	if err := server.New(s.registry, srvOpts...).Run(ctx, listen); err != nil {
		return WrapExitError(ExitFailure, "server failed", err)
	}
	return nil
}
