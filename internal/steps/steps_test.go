package steps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayniel-caadiang/logistics-api/internal/config"
	"github.com/dayniel-caadiang/logistics-api/internal/envpath"
	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"
	"github.com/dayniel-caadiang/logistics-api/internal/shell"
)

// fakeRunner records every command and fails those whose first manage.py
// argument (or the manager itself) is listed in failures.
type fakeRunner struct {
	mu       sync.Mutex
	commands []shell.Command
	failures map[string]error
}

func (f *fakeRunner) Run(_ context.Context, c shell.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, c)

	key := c.Name
	if len(c.Args) > 1 && c.Args[0] == "manage.py" {
		key = c.Args[1]
	}
	return f.failures[key]
}

func defaultDeployConfig() config.DeployConfig {
	return config.DeployConfig{
		Install: config.InstallConfig{Manager: "pip", Args: []string{"install", "-r"}, Manifest: "requirements.txt"},
		Env:     config.EnvConfig{PathVar: "PYTHONPATH"},
		Manage: config.ManageConfig{
			Python:            "python",
			Script:            "manage.py",
			CollectStaticArgs: []string{"collectstatic", "--noinput"},
			MigrateArgs:       []string{"migrate"},
		},
	}
}

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte(content), 0o644))
}

func TestBuild_Order(t *testing.T) {
	t.Parallel()

	cfg := defaultDeployConfig()
	cfg.Manage.PostCommands = []string{"createadmin"}

	built := Build(cfg, "/srv/app", &fakeRunner{})

	var names []string
	var states []orchestrator.State
	for _, s := range built {
		names = append(names, s.Name())
		states = append(states, s.State())
	}
	assert.Equal(t, []string{NameInstall, NameConfigureEnv, NameCollectStatic, NameMigrate, "createadmin"}, names)
	assert.Equal(t, []orchestrator.State{
		orchestrator.StateInstalling,
		orchestrator.StateConfiguringEnv,
		orchestrator.StateCollectingStatic,
		orchestrator.StateMigrating,
		orchestrator.StatePostCommands,
	}, states)
}

func TestInstallStep(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "Django==5.0.6\nwhitenoise\n")
	runner := &fakeRunner{}

	step := Build(defaultDeployConfig(), dir, runner)[0]
	env := envpath.New([]string{"PATH=/usr/bin"})
	require.NoError(t, step.Run(context.Background(), env))

	require.Len(t, runner.commands, 1)
	c := runner.commands[0]
	assert.Equal(t, "pip", c.Name)
	assert.Equal(t, []string{"install", "-r", filepath.Join(dir, "requirements.txt")}, c.Args)
	assert.Equal(t, dir, c.Dir)
	assert.Equal(t, []string{"PATH=/usr/bin"}, c.Env)
}

func TestInstallStep_ManifestsThePackageManagerAccepts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		manifest string
	}{
		{name: "current directory", manifest: ".\n"},
		{name: "vendored package", manifest: "./vendor/mypkg\n"},
		{name: "local wheel", manifest: "/wheels/foo-1.0-py3-none-any.whl\n"},
		{name: "byte order mark", manifest: "\ufeffDjango==5.0.6\n"},
		{name: "vcs requirement", manifest: "git+https://github.com/acme/routing.git#egg=routing\n"},
		{name: "empty file", manifest: ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeManifest(t, dir, tc.manifest)
			runner := &fakeRunner{}

			err := Build(defaultDeployConfig(), dir, runner)[0].Run(context.Background(), envpath.New(nil))
			require.NoError(t, err)
			require.Len(t, runner.commands, 1, "package manager must run")
			assert.Equal(t, "pip", runner.commands[0].Name)
		})
	}
}

func TestInstallStep_UnreadableManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A directory named like the manifest opens but cannot be read.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "requirements.txt"), 0o755))
	runner := &fakeRunner{}

	err := Build(defaultDeployConfig(), dir, runner)[0].Run(context.Background(), envpath.New(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrDependencyInstall)
	assert.Empty(t, runner.commands)
}

func TestInstallStep_AbsoluteManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "django\n")
	cfg := defaultDeployConfig()
	cfg.Install.Manifest = filepath.Join(dir, "requirements.txt")
	runner := &fakeRunner{}

	step := Build(cfg, "/elsewhere", runner)[0]
	require.NoError(t, step.Run(context.Background(), envpath.New(nil)))
	assert.Equal(t, cfg.Install.Manifest, runner.commands[0].Args[2])
}

func TestInstallStep_MissingManifest(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	step := Build(defaultDeployConfig(), t.TempDir(), runner)[0]

	err := step.Run(context.Background(), envpath.New(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrDependencyInstall)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, runner.commands, "package manager must not run without a manifest")
}

func TestInstallStep_ManagerFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "nosuchpackage-xyz==9.9\n")
	runner := &fakeRunner{failures: map[string]error{"pip": &shell.ExitError{Command: "pip", Code: 1}}}

	err := Build(defaultDeployConfig(), dir, runner)[0].Run(context.Background(), envpath.New(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrDependencyInstall)
	assert.Equal(t, 1, orchestrator.ExitCode(err))
}

func TestEnvStep(t *testing.T) {
	t.Parallel()

	step := Build(defaultDeployConfig(), "/srv/app", &fakeRunner{})[1]
	env := envpath.New([]string{"PYTHONPATH=/opt/lib"})

	require.NoError(t, step.Run(context.Background(), env))
	assert.Equal(t, "/opt/lib"+string(os.PathListSeparator)+"/srv/app", env.Get("PYTHONPATH"))
}

func TestManageSteps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		index    int
		wantArgs []string
		failKey  string
		wantKind error
	}{
		{
			name:     "collectstatic is non-interactive",
			index:    2,
			wantArgs: []string{"manage.py", "collectstatic", "--noinput"},
			failKey:  "collectstatic",
			wantKind: orchestrator.ErrStaticCollection,
		},
		{
			name:     "migrate",
			index:    3,
			wantArgs: []string{"manage.py", "migrate"},
			failKey:  "migrate",
			wantKind: orchestrator.ErrMigration,
		},
		{
			name:     "post command",
			index:    4,
			wantArgs: []string{"manage.py", "createadmin"},
			failKey:  "createadmin",
			wantKind: orchestrator.ErrPostCommand,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultDeployConfig()
			cfg.Manage.PostCommands = []string{"createadmin"}

			ok := &fakeRunner{}
			env := envpath.New([]string{"PYTHONPATH=/srv/app"})
			require.NoError(t, Build(cfg, "/srv/app", ok)[tc.index].Run(context.Background(), env))
			require.Len(t, ok.commands, 1)
			assert.Equal(t, "python", ok.commands[0].Name)
			assert.Equal(t, tc.wantArgs, ok.commands[0].Args)
			assert.Equal(t, "/srv/app", ok.commands[0].Dir)
			assert.Contains(t, ok.commands[0].Env, "PYTHONPATH=/srv/app")

			failing := &fakeRunner{failures: map[string]error{tc.failKey: &shell.ExitError{Code: 2}}}
			err := Build(cfg, "/srv/app", failing)[tc.index].Run(context.Background(), env)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantKind)
			assert.Equal(t, 2, orchestrator.ExitCode(err))
		})
	}
}

func TestManageStep_ToolNotFoundFoldsIntoKind(t *testing.T) {
	t.Parallel()

	// Real runner, deliberately missing interpreter.
	cfg := defaultDeployConfig()
	cfg.Manage.Python = "python-that-does-not-exist-xyz"

	err := Build(cfg, t.TempDir(), shell.NewRunner())[3].Run(context.Background(), envpath.FromOS())
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrMigration)
	assert.ErrorIs(t, err, shell.ErrToolNotFound)
	assert.Equal(t, shell.ExitCodeToolNotFound, orchestrator.ExitCode(err))
	assert.False(t, errors.Is(err, orchestrator.ErrStaticCollection))
}
