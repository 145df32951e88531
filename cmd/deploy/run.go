package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the deploy steps once and exit",
	Long: `Run installs dependencies, configures the search path, collects static
files and applies migrations, in that order.

The command prints a JSON result to stdout and exits 0 on success or with
the failing step's exit status.`,
	Args: cobra.NoArgs,
	RunE: runDeploy,
}

// deployFailed carries a failed run's exit status back to Execute.
type deployFailed struct {
	result *orchestrator.DeployResult
}

func (e *deployFailed) Error() string {
	return fmt.Sprintf("deploy %s failed at %s (exit %d)", e.result.ID, e.result.FailedStep, e.result.ExitCode)
}

func (e *deployFailed) ExitCode() int { return e.result.ExitCode }

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if cfg.Deploy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Deploy.Timeout)
		defer cancel()
	}

	slog.InfoContext(ctx, "starting deploy", "workdir", app.workdir)

	result, err := app.orchestrator.RunDeploy(ctx)
	if err != nil {
		return fmt.Errorf("deploy could not start: %w", err)
	}

	printJSON(cmd.OutOrStdout(), result)
	if result.Status == orchestrator.StatusError {
		return &deployFailed{result: result}
	}

	slog.InfoContext(ctx, "deploy completed successfully", "deploy_id", result.ID)
	return nil
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encoding result", "err", err)
	}
}
