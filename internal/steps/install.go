package steps

import (
	"context"
	"log/slog"

	"github.com/dayniel-caadiang/logistics-api/internal/envpath"
	"github.com/dayniel-caadiang/logistics-api/internal/manifest"
	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"
	"github.com/dayniel-caadiang/logistics-api/internal/shell"
)

// InstallStep installs every package listed in the manifest with the
// configured package manager.
type InstallStep struct {
	manager  string
	args     []string
	manifest string
	workdir  string
	runner   CommandRunner
}

func (s *InstallStep) Name() string              { return NameInstall }
func (s *InstallStep) State() orchestrator.State { return orchestrator.StateInstalling }

// Run reads the manifest first so a missing or unreadable file fails the
// step before the package manager is started. Whether its lines resolve is
// left to the package manager.
func (s *InstallStep) Run(ctx context.Context, env *envpath.Environ) error {
	m, err := manifest.Load(s.manifest)
	if err != nil {
		return orchestrator.NewStepError(NameInstall, orchestrator.ErrDependencyInstall, err)
	}
	slog.InfoContext(ctx, "installing dependencies",
		"manifest", s.manifest,
		"packages", len(m.Requirements),
		"direct", len(m.Direct),
		"options", len(m.Options),
	)

	args := make([]string, 0, len(s.args)+1)
	args = append(args, s.args...)
	args = append(args, s.manifest)

	err = s.runner.Run(ctx, shell.Command{
		Name: s.manager,
		Args: args,
		Dir:  s.workdir,
		Env:  env.Slice(),
	})
	if err != nil {
		return orchestrator.NewStepError(NameInstall, orchestrator.ErrDependencyInstall, err)
	}
	return nil
}
