package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dayniel-caadiang/logistics-api/internal/api"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deploy agent HTTP server",
	Long: `Start the deploy agent on the configured port (default :8081).

POST /api/v1/deploy triggers a run in the background; GET /api/v1/deploy
reports the last one. /health, /health/deep and /ready serve probes,
/metrics exposes step counters and /api-docs the API reference.

On SIGTERM or SIGINT the server stops accepting requests, kills the running
deploy step and waits for the run to record its result before exiting.`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Deploys run under ctx: a shutdown signal cancels the running step.
	router := api.NewRouter(ctx, app.orchestrator, app.metrics, cfg.Telemetry.ServiceName)
	defer func() {
		stop()
		if app.orchestrator.IsDeployInProgress() {
			slog.Info("waiting for running deploy to stop")
		}
		router.Wait()
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("deploy agent listening", "addr", addr, "workdir", app.workdir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped cleanly")
	return nil
}
