package steps

import (
	"context"

	"github.com/dayniel-caadiang/logistics-api/internal/envpath"
	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"
	"github.com/dayniel-caadiang/logistics-api/internal/shell"
)

// ManageStep runs one Django management command (collectstatic, migrate,
// or a post-migrate command such as createadmin).
type ManageStep struct {
	name    string
	state   orchestrator.State
	kind    error
	python  string
	script  string
	args    []string
	workdir string
	runner  CommandRunner
}

func (s *ManageStep) Name() string              { return s.name }
func (s *ManageStep) State() orchestrator.State { return s.state }

func (s *ManageStep) Run(ctx context.Context, env *envpath.Environ) error {
	args := make([]string, 0, len(s.args)+1)
	args = append(args, s.script)
	args = append(args, s.args...)

	err := s.runner.Run(ctx, shell.Command{
		Name: s.python,
		Args: args,
		Dir:  s.workdir,
		Env:  env.Slice(),
	})
	if err != nil {
		return orchestrator.NewStepError(s.name, s.kind, err)
	}
	return nil
}
