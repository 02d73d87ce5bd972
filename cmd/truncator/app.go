package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"sync"
	"sync/atomic"

	"mercator-hq/truncator/pkg/cli"
	"mercator-hq/truncator/pkg/config"
	"mercator-hq/truncator/pkg/history"
	"mercator-hq/truncator/pkg/history/gormstore"
	"mercator-hq/truncator/pkg/history/storage"
	"mercator-hq/truncator/pkg/retention"
	"mercator-hq/truncator/pkg/schema"
	"mercator-hq/truncator/pkg/telemetry/logging"
	"mercator-hq/truncator/pkg/telemetry/metrics"
	"mercator-hq/truncator/pkg/telemetry/tracing"
)

// driverMemory selects the in-memory store. It starts empty and is only
// useful for smoke tests of the configuration.
const driverMemory = "memory"

// app holds the components shared by the sweeping commands.
type app struct {
	logger   *slog.Logger
	store    history.Store
	metrics  *metrics.SweepMetrics
	tracer   *tracing.Tracer
	sweeper  *retention.Sweeper
	resolver *registryResolver

	mu  sync.RWMutex
	cfg *config.Config
}

// registryResolver lets a running daemon swap the type registry on reload.
type registryResolver struct {
	current atomic.Pointer[schema.Registry]
}

func (r *registryResolver) Resolve(typeName string) (*schema.Resolution, error) {
	return r.current.Load().Resolve(typeName)
}

func (r *registryResolver) registry() *schema.Registry {
	return r.current.Load()
}

// loadConfig loads the configuration named by --config, applying
// environment overrides and --verbose.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cfg *config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	logger, err := logging.New(logging.Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		AddSource: cfg.AddSource,
		Writer:    w,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return logger, nil
}

// openStore opens the configured history backend.
func openStore(cfg *config.StorageConfig) (history.Store, error) {
	switch cfg.Driver {
	case storage.DriverSQLite3, storage.DriverSQLite:
		s, err := storage.NewSQLStorage(&storage.SQLConfig{
			Driver:       cfg.Driver,
			Path:         cfg.Path,
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
			WALMode:      cfg.WAL(),
			BusyTimeout:  cfg.BusyTimeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	case gormstore.DialectPostgres, gormstore.DialectMySQL:
		s, err := gormstore.Open(gormstore.Config{
			Dialect:         cfg.Driver,
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	case driverMemory:
		return storage.NewMemoryStorage(), nil

	default:
		return nil, cli.NewConfigError("storage.driver", fmt.Sprintf("unsupported driver %q", cfg.Driver))
	}
}

// newApp wires storage, telemetry and the sweeper from cfg.
func newApp(cfg *config.Config, logOutput io.Writer) (*app, error) {
	logger, err := newLogger(&cfg.Telemetry.Logging, logOutput)
	if err != nil {
		return nil, err
	}

	registry, err := schema.NewRegistry(cfg.Schema.Types, cfg.Schema.VersionSuffix)
	if err != nil {
		return nil, cli.NewConfigError("schema.types", err.Error())
	}
	resolver := &registryResolver{}
	resolver.current.Store(registry)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.tracing", err.Error())
	}

	store, err := openStore(&cfg.Storage)
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}

	sweepMetrics := metrics.NewSweepMetrics(cfg.Telemetry.Metrics.Namespace, nil)

	sweeper := retention.NewSweeper(store, resolver,
		retention.WithLogger(logger),
		retention.WithRecorder(sweepMetrics),
		retention.WithTracer(tracer.Tracer()),
	)

	return &app{
		logger:   logger,
		store:    store,
		metrics:  sweepMetrics,
		tracer:   tracer,
		sweeper:  sweeper,
		resolver: resolver,
		cfg:      cfg,
	}, nil
}

func (a *app) config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// policyFor returns the effective retention policy of a type: the type's own
// settings, then its ancestors', then the defaults.
func (a *app) policyFor(typeName string) (retention.Policy, error) {
	res, err := a.resolver.Resolve(typeName)
	if err != nil {
		return retention.Policy{}, err
	}
	return retention.PolicyFromConfig(a.config().Retention.PolicyFor(res.Chain)), nil
}

// jobs returns the scheduled sweep jobs: the configured sweep types, or
// every staged type when none are listed.
func (a *app) jobs() ([]retention.Job, error) {
	cfg := a.config()
	registry := a.resolver.registry()

	types := cfg.Retention.SweepTypes
	if len(types) == 0 {
		types = registry.Types()
	}

	jobs := make([]retention.Job, 0, len(types))
	for _, typeName := range types {
		res, err := registry.Resolve(typeName)
		if err != nil {
			return nil, err
		}
		if !res.HasStages {
			continue
		}
		jobs = append(jobs, retention.Job{
			Type:   typeName,
			Policy: retention.PolicyFromConfig(cfg.Retention.PolicyFor(res.Chain)),
		})
	}
	return jobs, nil
}

// reload applies a new configuration's schema and retention settings.
// Storage and telemetry changes need a restart.
func (a *app) reload(ctx context.Context, cfg *config.Config, scheduler *retention.Scheduler) error {
	registry, err := schema.NewRegistry(cfg.Schema.Types, cfg.Schema.VersionSuffix)
	if err != nil {
		return err
	}

	old := a.config()
	if !reflect.DeepEqual(old.Storage, cfg.Storage) {
		a.logger.Warn("storage settings changed, restart to apply")
	}
	if !reflect.DeepEqual(old.Telemetry, cfg.Telemetry) {
		a.logger.Warn("telemetry settings changed, restart to apply")
	}

	a.mu.Lock()
	previous := a.cfg
	a.cfg = cfg
	a.mu.Unlock()
	previousRegistry := a.resolver.registry()
	a.resolver.current.Store(registry)

	jobs, err := a.jobs()
	if err == nil {
		err = scheduler.Update(ctx, cfg.Retention.Schedule, jobs)
	}
	if err != nil {
		a.mu.Lock()
		a.cfg = previous
		a.mu.Unlock()
		a.resolver.current.Store(previousRegistry)
		return err
	}

	a.logger.Info("configuration reloaded",
		"schedule", cfg.Retention.Schedule,
		"jobs", len(jobs),
	)
	return nil
}

// Close releases the store and flushes traces.
func (a *app) Close() error {
	var errs []error
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.tracer.Shutdown(context.Background()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
