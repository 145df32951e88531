package main

import (
	"errors"
	"sort"

	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("one or more dependencies are unhealthy")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the database and configured dependencies",
	Long: `Check probes Postgres (and Redis/NATS when configured), prints a JSON
report to stdout, and exits 1 if any dependency is unhealthy.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	probes := app.orchestrator.RunDeepHealth(cmd.Context())

	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	report := make([]any, 0, len(names))
	for _, name := range names {
		p := probes[name]
		healthy = healthy && p.OK
		report = append(report, p)
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	printJSON(cmd.OutOrStdout(), map[string]any{"status": status, "dependencies": report})

	if !healthy {
		return errUnhealthy
	}
	return nil
}
