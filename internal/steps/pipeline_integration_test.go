package steps

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayniel-caadiang/logistics-api/internal/envpath"
	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"
	"github.com/dayniel-caadiang/logistics-api/internal/shell"
)

// Stand-ins for pip and python manage.py with the same observable
// behaviour: non-zero exit and a diagnostic on stderr when they fail.
const fakePip = `#!/bin/sh
# invoked as: pip install -r <manifest>
if grep -q nosuchpackage "$3"; then
  echo "ERROR: No matching distribution found for nosuchpackage" >&2
  exit 1
fi
touch .installed
`

const fakePython = `#!/bin/sh
# invoked as: python manage.py <command> [args]
shift
case "$1" in
collectstatic)
  [ "$2" = "--noinput" ] || exit 9
  mkdir -p staticfiles
  printf '%s' "$PYTHONPATH" > staticfiles/pythonpath.txt
  ;;
migrate)
  if [ "$DB_REACHABLE" != "1" ]; then
    echo "django.db.utils.OperationalError: connection refused" >&2
    exit 1
  fi
  touch .migrated
  ;;
*)
  exit 2
  ;;
esac
`

// These tests write executables and then exec them, so they stay serial:
// a concurrent fork can inherit the write fd and fail exec with ETXTBSY.

type project struct {
	dir    string
	bin    string
	stderr *bytes.Buffer
}

func newProject(t *testing.T, requirements string) *project {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	root := t.TempDir()
	p := &project{dir: filepath.Join(root, "app"), bin: filepath.Join(root, "bin"), stderr: &bytes.Buffer{}}
	require.NoError(t, os.MkdirAll(p.dir, 0o755))
	require.NoError(t, os.MkdirAll(p.bin, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.bin, "pip"), []byte(fakePip), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.bin, "python"), []byte(fakePython), 0o755))
	writeManifest(t, p.dir, requirements)
	return p
}

func (p *project) run(t *testing.T, dbReachable bool) *orchestrator.DeployResult {
	t.Helper()

	cfg := defaultDeployConfig()
	cfg.Install.Manager = filepath.Join(p.bin, "pip")
	cfg.Manage.Python = filepath.Join(p.bin, "python")

	runner := &shell.Runner{Stdout: &bytes.Buffer{}, Stderr: p.stderr, WaitDelay: time.Second}
	reachable := "0"
	if dbReachable {
		reachable = "1"
	}
	o := orchestrator.New(Build(cfg, p.dir, runner), orchestrator.WithEnviron(func() *envpath.Environ {
		env := envpath.New(os.Environ())
		env.Set("PYTHONPATH", "/opt/lib")
		env.Set("DB_REACHABLE", reachable)
		return env
	}))

	result, err := o.RunDeploy(context.Background())
	require.NoError(t, err)
	return result
}

func (p *project) exists(name string) bool {
	_, err := os.Stat(filepath.Join(p.dir, name))
	return err == nil
}

func TestPipeline_Success(t *testing.T) {
	p := newProject(t, "Django==5.0.6\nwhitenoise\n")
	result := p.run(t, true)

	assert.Equal(t, orchestrator.StatusOK, result.Status)
	assert.Equal(t, orchestrator.StateDone, result.State)
	assert.Equal(t, 0, result.ExitCode)

	assert.True(t, p.exists(".installed"))
	assert.True(t, p.exists("staticfiles"))
	assert.True(t, p.exists(".migrated"))

	got, err := os.ReadFile(filepath.Join(p.dir, "staticfiles", "pythonpath.txt"))
	require.NoError(t, err)
	assert.Equal(t, "/opt/lib"+string(os.PathListSeparator)+p.dir, string(got),
		"collectstatic must inherit the extended search path")
}

func TestPipeline_InstallFailure(t *testing.T) {
	p := newProject(t, "nosuchpackage==1.0\n")
	result := p.run(t, true)

	assert.Equal(t, orchestrator.StatusError, result.Status)
	assert.Equal(t, NameInstall, result.FailedStep)
	assert.Equal(t, 1, result.ExitCode)

	assert.False(t, p.exists("staticfiles"), "no static files after install failure")
	assert.False(t, p.exists(".migrated"), "no migrations after install failure")
	assert.Contains(t, p.stderr.String(), "No matching distribution found")

	for _, name := range []string{NameConfigureEnv, NameCollectStatic, NameMigrate} {
		phase, ok := result.Phase(name)
		require.True(t, ok)
		assert.Equal(t, orchestrator.StatusSkipped, phase.Status, name)
	}
}

func TestPipeline_MigrationFailure(t *testing.T) {
	p := newProject(t, "Django==5.0.6\n")
	result := p.run(t, false)

	assert.Equal(t, orchestrator.StatusError, result.Status)
	assert.Equal(t, NameMigrate, result.FailedStep)
	assert.Equal(t, 1, result.ExitCode)

	assert.True(t, p.exists(".installed"))
	assert.True(t, p.exists("staticfiles"))
	assert.False(t, p.exists(".migrated"))
	assert.Contains(t, p.stderr.String(), "OperationalError")

	for _, name := range []string{NameInstall, NameConfigureEnv, NameCollectStatic} {
		phase, ok := result.Phase(name)
		require.True(t, ok)
		assert.Equal(t, orchestrator.StatusOK, phase.Status, name)
	}
}
