package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dayniel-caadiang/logistics-api/internal/api"
	"github.com/dayniel-caadiang/logistics-api/internal/clients"
	"github.com/dayniel-caadiang/logistics-api/internal/config"
	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"
	"github.com/dayniel-caadiang/logistics-api/internal/shell"
	"github.com/dayniel-caadiang/logistics-api/internal/steps"
	"github.com/dayniel-caadiang/logistics-api/internal/telemetry"
)

// AppContext holds all constructed application dependencies shared across
// subcommands. It is built once in PersistentPreRunE.
type AppContext struct {
	cfg          *config.Config
	workdir      string
	otelProvider *telemetry.Provider
	orchestrator *orchestrator.Orchestrator
	metrics      *api.Metrics
	closers      []func()
}

// buildAppContext constructs all application dependencies from cfg:
//  1. Initialises the OTEL provider (best-effort, non-fatal)
//  2. Resolves the working directory and builds the deploy steps
//  3. Creates the optional Redis lock and NATS event clients
//  4. Creates the orchestrator with a probe per configured dependency and
//     a Prometheus sink for step events
//
// The HTTP router is built by serve, which owns the context deploys run under.
func buildAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	app := &AppContext{cfg: cfg}

	// When OTLPEndpoint is empty, telemetry is disabled entirely and the
	// global no-op providers stay in place.
	if cfg.Telemetry.OTLPEndpoint == "" {
		slog.Debug("OTEL telemetry disabled (no endpoint configured)")
	} else {
		tp, err := telemetry.InitProvider(ctx,
			cfg.Telemetry.OTLPEndpoint,
			cfg.Telemetry.ServiceName,
			version,
			cfg.Telemetry.OTLPInsecure,
		)
		if err != nil {
			slog.Warn("OTEL provider init failed, telemetry disabled", "err", err)
		} else {
			app.otelProvider = tp
		}
	}

	workdir, err := resolveWorkdir(cfg.Deploy.Workdir)
	if err != nil {
		return nil, err
	}
	app.workdir = workdir

	runner := newStepRunner()
	pipeline := steps.Build(cfg.Deploy, workdir, runner)

	app.metrics = api.NewMetrics()
	pg := clients.NewPostgresClient(cfg.Database, clients.NewCircuitBreaker("postgres"))
	opts := []orchestrator.Option{
		orchestrator.WithEvents(app.metrics),
		orchestrator.WithProbe("postgres", pg),
	}

	if cfg.Lock.RedisAddr != "" {
		redis := clients.NewRedisClient(cfg.Lock, clients.NewCircuitBreaker("redis"))
		opts = append(opts, orchestrator.WithLocker(redis), orchestrator.WithProbe("redis", redis))
		app.closers = append(app.closers, func() {
			if err := redis.Close(); err != nil {
				slog.Warn("closing redis client", "err", err)
			}
		})
	}

	if cfg.Events.NATSURL != "" {
		nats := clients.NewNATSClient(cfg.Events, clients.NewCircuitBreaker("nats"))
		opts = append(opts, orchestrator.WithEvents(nats), orchestrator.WithProbe("nats", nats))
		app.closers = append(app.closers, nats.Close)
	}

	app.orchestrator = orchestrator.New(pipeline, opts...)

	slog.Debug("app context ready",
		"workdir", workdir,
		"steps", len(pipeline),
		"lock", cfg.Lock.RedisAddr != "",
		"events", cfg.Events.NATSURL != "",
	)
	return app, nil
}

// Close releases client connections and flushes telemetry.
func (a *AppContext) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.otelProvider != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelProvider.Shutdown(shutCtx); err != nil {
			slog.Warn("OTEL shutdown error", "err", err)
		}
	}
}

// newStepRunner streams child output to stderr: stdout carries only the
// JSON documents run and check print.
func newStepRunner() *shell.Runner {
	r := shell.NewRunner()
	r.Stdout = os.Stderr
	return r
}

func resolveWorkdir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving workdir %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("workdir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workdir %s is not a directory", abs)
	}
	return abs, nil
}
