package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/truncator/pkg/cli"
	"mercator-hq/truncator/pkg/config"
	"mercator-hq/truncator/pkg/retention"
	"mercator-hq/truncator/pkg/telemetry/health"
)

const shutdownTimeout = 10 * time.Second

var runFlags struct {
	now      bool
	noWatch  bool
	schedule string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scheduled sweeps",
	Long: `Run the truncator as a daemon.

Every configured type is swept on the retention.schedule cron expression.
Prometheus metrics and health probes are served on the metrics address, and
changes to the config file are applied without a restart. SIGINT or SIGTERM
waits for the running sweep and stops.

Examples:
  # Start with the configured schedule
  truncator run

  # Sweep once immediately, then follow the schedule
  truncator run --now

  # Override the schedule
  truncator run --schedule "*/30 * * * *"`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runFlags.now, "now", false, "run a sweep immediately on start")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "do not reload the config file on change")
	runCmd.Flags().StringVar(&runFlags.schedule, "schedule", "", "override retention.schedule")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.schedule != "" {
		cfg.Retention.Schedule = runFlags.schedule
	}

	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Truncator v%s\n", Version)
	fmt.Fprintf(out, "✓ Configuration loaded from %s\n", cfgFile)

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	jobs, err := a.jobs()
	if err != nil {
		return cli.NewConfigError("retention.sweep_types", err.Error())
	}
	scheduler := retention.NewScheduler(a.sweeper, cfg.Retention.Schedule, jobs, a.logger)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewConfigError("retention.schedule", err.Error())
	}
	defer scheduler.Stop()

	if next := scheduler.NextRun(); next != nil {
		fmt.Fprintf(out, "✓ Scheduler started (%d types, next run %s)\n", len(jobs), next.Format(time.RFC3339))
	}

	errChan := make(chan error, 1)

	var srv *http.Server
	if cfg.Telemetry.Metrics.IsEnabled() {
		srv, err = startHTTPServer(cfg, a, scheduler, errChan)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", cfg.Telemetry.Metrics.ListenAddress, cfg.Telemetry.Metrics.Path)
		fmt.Fprintf(out, "✓ Health endpoints: http://%s%s, %s\n", cfg.Telemetry.Metrics.ListenAddress, health.LivenessPath, health.ReadinessPath)
	}

	if !runFlags.noWatch {
		watcher, err := config.NewWatcher(cfgFile, a.logger)
		if err != nil {
			a.logger.Warn("config hot reload disabled", "error", err)
		} else {
			defer watcher.Close()
			go func() {
				err := watcher.Watch(ctx, func(newCfg *config.Config) {
					if verbose {
						newCfg.Telemetry.Logging.Level = "debug"
					}
					if runFlags.schedule != "" {
						newCfg.Retention.Schedule = runFlags.schedule
					}
					if err := a.reload(ctx, newCfg, scheduler); err != nil {
						a.logger.Error("failed to apply reloaded configuration", "error", err)
					}
				})
				if err != nil {
					a.logger.Error("config watcher stopped", "error", err)
				}
			}()
		}
	}

	if runFlags.now {
		go func() {
			if err := scheduler.RunOnce(ctx); err != nil {
				a.logger.Warn("initial sweep finished with errors", "error", err)
			}
		}()
	}

	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case <-ctx.Done():
		fmt.Fprintln(out, "\nShutting down gracefully...")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}
	}

	fmt.Fprintln(out, "✓ Stopped")
	return nil
}

// startHTTPServer serves metrics and health probes. Listen errors are
// returned immediately; later serve errors are sent on errChan.
func startHTTPServer(cfg *config.Config, a *app, scheduler *retention.Scheduler, errChan chan<- error) (*http.Server, error) {
	checker := health.New(2 * time.Second)
	checker.Register("storage", a.store.Ping)
	checker.Register("scheduler", func(context.Context) error {
		if !scheduler.IsRunning() {
			return errors.New("scheduler not running")
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle(cfg.Telemetry.Metrics.Path, a.metrics.Handler())
	checker.Mount(mux)

	ln, err := net.Listen("tcp", cfg.Telemetry.Metrics.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Telemetry.Metrics.ListenAddress, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("starting HTTP server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	return srv, nil
}
