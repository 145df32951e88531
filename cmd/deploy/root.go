package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dayniel-caadiang/logistics-api/internal/config"
	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"
	"github.com/dayniel-caadiang/logistics-api/internal/telemetry"

	"github.com/spf13/cobra"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile  string
	logLevel string

	// cfg is populated by PersistentPreRunE and shared with all subcommands.
	cfg *config.Config

	// app holds all wired dependencies; populated by PersistentPreRunE.
	app *AppContext

	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Bootstrap a Django deployment",
	Long: `deploy prepares the logistics API for serving. It runs, in order:

  1. install        pip install -r requirements.txt
  2. configure-env  append the project directory to PYTHONPATH
  3. collectstatic  python manage.py collectstatic --noinput
  4. migrate        python manage.py migrate

The first failing step stops the run and its exit status becomes the
process exit status. Without a subcommand, deploy behaves like "deploy run".`,
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDeploy,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		// --log-level flag takes precedence over value in config file.
		if cmd.Flags().Changed("log-level") || cfg.Telemetry.LogLevel == "" {
			cfg.Telemetry.LogLevel = logLevel
		}

		// Logs go to stderr, as does child output (newStepRunner), so stdout
		// carries only the JSON result.
		logger, closer, err := telemetry.NewLogger(os.Stderr, cfg.Telemetry.LogLevel, cfg.Telemetry.LogFile)
		if err != nil {
			return err
		}
		closeLog = closer
		slog.SetDefault(logger)

		app, err = buildAppContext(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("building app context: %w", err)
		}

		return nil
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	err := rootCmd.ExecuteContext(context.Background())

	if app != nil {
		app.Close()
	}
	if cerr := closeLog(); cerr != nil {
		fmt.Fprintln(os.Stderr, "closing log file:", cerr)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return orchestrator.ExitCode(err)
}
