package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/catalog"
	"mercator-hq/warden/pkg/catalog/gitsource"
	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/monitor/schedule"
	"mercator-hq/warden/pkg/retention"
	"mercator-hq/warden/pkg/telemetry/health"
)

const shutdownTimeout = 10 * time.Second

var runFlags struct {
	listenAddress string
	runNow        bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the monitoring scheduler",
	Long: `Start the monitoring scheduler with the specified configuration.

The hourly job runs a monitoring cycle over every monitored policy. The daily
job prunes old check results and notifications and logs a compliance
summary. Metrics and health endpoints are served on telemetry.metrics.listen.

When catalog.path is set the catalog is imported at startup, and with
catalog.watch it is re-imported whenever the file changes. When
catalog.git.repository is set the repository is cloned instead and polled
every catalog.git.poll_interval for new commits.

Examples:
  # Start with a config file
  warden run --config /etc/warden/warden.yaml

  # Run a cycle immediately instead of waiting for the first schedule
  warden run --now

  # Override the telemetry listen address
  warden run --listen 0.0.0.0:9090`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override telemetry listen address")
	runCmd.Flags().BoolVar(&runFlags.runNow, "now", false, "run a monitoring cycle at startup")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "evaluate without writing to the store")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Telemetry.Metrics.Listen = runFlags.listenAddress
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	e, err := newEngine(cfg, logger, engineOptions{monitor: true, dryRun: runFlags.dryRun})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer e.Close()

	if err := e.ping(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	if err := loadCatalog(ctx, cfg.Catalog, catalog.NewImporter(e.store, e.metrics, logger), logger); err != nil {
		return cli.NewCommandError("run", err)
	}

	srv, err := startTelemetry(cfg, e, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	var scheduler *schedule.Scheduler
	if cfg.Monitor.Enabled {
		pruner := retention.NewPruner(e.monitorStore, cfg.Retention, e.metrics, logger)
		scheduler = schedule.New(e.orchestrator, pruner, e.store, cfg.Monitor, logger)
		if err := scheduler.Start(ctx); err != nil {
			shutdownTelemetry(srv, logger)
			return cli.NewCommandError("run", err)
		}
		for job, next := range scheduler.NextRuns() {
			logger.Info("job scheduled", "job", job, "next_run", next)
		}
	} else {
		logger.Warn("monitoring disabled, serving telemetry only")
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Warden v%s\n", Version)
	if srv != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Metrics endpoint: http://%s%s\n", cfg.Telemetry.Metrics.Listen, cfg.Telemetry.Metrics.Path)
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Health endpoint: http://%s%s\n", cfg.Telemetry.Metrics.Listen, cfg.Telemetry.Health.LivenessPath)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Press Ctrl+C to stop")

	if runFlags.runNow && scheduler != nil {
		go scheduler.RunHourly(ctx)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if scheduler != nil {
		scheduler.Stop()
	}
	shutdownTelemetry(srv, logger)

	fmt.Fprintln(cmd.ErrOrStderr(), "✓ Stopped")
	return nil
}

// loadCatalog imports the configured catalog and keeps it current: a Git
// catalog is polled for new commits, a file catalog is watched when
// catalog.watch is set.
func loadCatalog(ctx context.Context, cfg config.CatalogConfig, importer *catalog.Importer, logger *slog.Logger) error {
	if cfg.Git.Enabled() {
		src, err := gitsource.New(cfg.Git, logger)
		if err != nil {
			return err
		}
		if _, err := src.Sync(ctx); err != nil {
			return err
		}
		if _, err := importer.ImportFile(ctx, src.CatalogPath()); err != nil {
			return err
		}
		go src.Poll(ctx, cfg.Git.PollInterval, func(ctx context.Context, path string) error {
			_, err := importer.ImportFile(ctx, path)
			return err
		})
		return nil
	}

	if cfg.Path == "" {
		return nil
	}
	if _, err := importer.ImportFile(ctx, cfg.Path); err != nil {
		return err
	}
	if cfg.Watch {
		return watchCatalog(ctx, cfg, importer, logger)
	}
	return nil
}

// watchCatalog re-imports the catalog on file changes until ctx is done.
func watchCatalog(ctx context.Context, cfg config.CatalogConfig, importer *catalog.Importer, logger *slog.Logger) error {
	w, err := catalog.NewWatcher(cfg.Path, cfg.Debounce, logger)
	if err != nil {
		return err
	}
	go func() {
		err := w.Watch(ctx, func(ctx context.Context) error {
			_, err := importer.ImportFile(ctx, cfg.Path)
			return err
		})
		if err != nil {
			logger.Error("catalog watcher exited", "error", err)
		}
	}()
	return nil
}

// startTelemetry serves metrics and health probes. It returns nil when
// metrics are disabled.
func startTelemetry(cfg *config.Config, e *engine, logger *slog.Logger) (*http.Server, error) {
	if !cfg.Telemetry.Metrics.Enabled {
		return nil, nil
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("storage", health.StoreCheck(e.store))
	if e.classifier != nil {
		checker.RegisterCheck("classifier", health.ClassifierCheck(e.classifier))
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Telemetry.Metrics.Path, e.metrics.Handler())
	checker.Register(mux, cfg.Telemetry.Health)

	ln, err := net.Listen("tcp", cfg.Telemetry.Metrics.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Telemetry.Metrics.Listen, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("telemetry server failed", "error", err)
		}
	}()

	logger.Info("telemetry server started", "address", ln.Addr().String())
	return srv, nil
}

func shutdownTelemetry(srv *http.Server, logger *slog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("telemetry server shutdown failed", "error", err)
	}
}
