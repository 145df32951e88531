package steps

import (
	"context"
	"log/slog"

	"github.com/dayniel-caadiang/logistics-api/internal/envpath"
	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"
)

// EnvStep appends the working directory to a search-path variable. It only
// mutates the run's environment and never fails.
type EnvStep struct {
	pathVar string
	segment string
}

func (s *EnvStep) Name() string              { return NameConfigureEnv }
func (s *EnvStep) State() orchestrator.State { return orchestrator.StateConfiguringEnv }

func (s *EnvStep) Run(ctx context.Context, env *envpath.Environ) error {
	value := env.Append(s.pathVar, s.segment)
	slog.InfoContext(ctx, "search path extended", "var", s.pathVar, "value", value)
	return nil
}
