// Package steps implements the deploy pipeline's units of work: install
// dependencies, extend the search path, collect static assets, migrate,
// and any post-migrate management commands.
package steps

import (
	"context"
	"path/filepath"

	"github.com/dayniel-caadiang/logistics-api/internal/config"
	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"
	"github.com/dayniel-caadiang/logistics-api/internal/shell"
)

// Step names as they appear in results, logs and events.
const (
	NameInstall       = "install"
	NameConfigureEnv  = "configure-env"
	NameCollectStatic = "collectstatic"
	NameMigrate       = "migrate"
)

// CommandRunner is satisfied by *shell.Runner.
type CommandRunner interface {
	Run(ctx context.Context, c shell.Command) error
}

// Build returns the deploy steps in execution order for workdir.
func Build(cfg config.DeployConfig, workdir string, runner CommandRunner) []orchestrator.Step {
	manifest := cfg.Install.Manifest
	if manifest != "" && !filepath.IsAbs(manifest) {
		manifest = filepath.Join(workdir, manifest)
	}

	manage := func(name string, state orchestrator.State, kind error, args []string) *ManageStep {
		return &ManageStep{
			name:    name,
			state:   state,
			kind:    kind,
			python:  cfg.Manage.Python,
			script:  cfg.Manage.Script,
			args:    args,
			workdir: workdir,
			runner:  runner,
		}
	}

	out := []orchestrator.Step{
		&InstallStep{
			manager:  cfg.Install.Manager,
			args:     cfg.Install.Args,
			manifest: manifest,
			workdir:  workdir,
			runner:   runner,
		},
		&EnvStep{pathVar: cfg.Env.PathVar, segment: workdir},
		manage(NameCollectStatic, orchestrator.StateCollectingStatic, orchestrator.ErrStaticCollection, cfg.Manage.CollectStaticArgs),
		manage(NameMigrate, orchestrator.StateMigrating, orchestrator.ErrMigration, cfg.Manage.MigrateArgs),
	}
	for _, name := range cfg.Manage.PostCommands {
		out = append(out, manage(name, orchestrator.StatePostCommands, orchestrator.ErrPostCommand, []string{name}))
	}
	return out
}
