package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auto-dns/container-deployer/internal/app"
	"github.com/auto-dns/container-deployer/internal/config"
	"github.com/auto-dns/container-deployer/internal/domain"
)

type fakeApplication struct {
	phases  domain.Phases
	runErr  error
	status  bool
	history bool
	closed  bool
}

func (f *fakeApplication) Run(_ context.Context, phases domain.Phases) error {
	f.phases = phases
	return f.runErr
}

func (f *fakeApplication) Status(context.Context) ([]app.UnitStatus, error) {
	f.status = true
	return nil, nil
}

func (f *fakeApplication) History(context.Context) ([]domain.DeploymentRecord, error) {
	f.history = true
	return nil, nil
}

func (f *fakeApplication) Close() error {
	f.closed = true
	return nil
}

const argumentsDocument = `{
    "-b": {"arg": "--build", "help": "Build images", "action": "store_true"},
    "-d": {"arg": "--deploy", "help": "Deploy containers", "action": "store_true"},
    "-p": {"arg": "--push", "help": "Push images", "action": "store_true"}
}`

// setupWorkdir creates a working directory with a config file pointing at an
// argument document and returns the config path.
func setupWorkdir(t *testing.T, withArguments bool) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	argsPath := filepath.Join(dir, "arguments.json")
	if withArguments {
		require.NoError(t, os.WriteFile(argsPath, []byte(argumentsDocument), 0o644))
	}
	cfgPath := filepath.Join(dir, "deployer.yaml")
	content := fmt.Sprintf("app:\n  arguments_file: %s\n  containers_dir: %s\nlog:\n  log_level: ERROR\n", argsPath, dir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath
}

func factoryFor(fake *fakeApplication, err error) appFactory {
	return func(context.Context, *config.Config, zerolog.Logger) (application, error) {
		if err != nil {
			return nil, err
		}
		return fake, nil
	}
}

func TestExecute_RunsSelectedPhases(t *testing.T) {
	cfgPath := setupWorkdir(t, true)
	fake := &fakeApplication{}

	code := execute([]string{"--config", cfgPath, "-b", "--deploy"}, viper.New(), factoryFor(fake, nil), &bytes.Buffer{})

	assert.Equal(t, exitOK, code)
	assert.Equal(t, domain.NewPhases(domain.PhaseBuild, domain.PhaseDeploy), fake.phases)
	assert.True(t, fake.closed)
}

func TestExecute_StatusAndHistory(t *testing.T) {
	cfgPath := setupWorkdir(t, true)

	fake := &fakeApplication{}
	assert.Equal(t, exitOK, execute([]string{"status", "--config", cfgPath}, viper.New(), factoryFor(fake, nil), &bytes.Buffer{}))
	assert.True(t, fake.status)
	assert.True(t, fake.closed)

	fake = &fakeApplication{}
	assert.Equal(t, exitOK, execute([]string{"history", "--config", cfgPath}, viper.New(), factoryFor(fake, nil), &bytes.Buffer{}))
	assert.True(t, fake.history)
}

func TestExecute_MissingArgumentsDocument(t *testing.T) {
	cfgPath := setupWorkdir(t, false)
	var stderr bytes.Buffer

	code := execute([]string{"--config", cfgPath, "-b"}, viper.New(), factoryFor(&fakeApplication{}, nil), &stderr)

	assert.Equal(t, exitArguments, code)
	assert.Contains(t, stderr.String(), "please reference the project documentation")
}

func TestExecute_MissingConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	code := execute([]string{"--config", "nope.yaml"}, viper.New(), factoryFor(&fakeApplication{}, nil), &bytes.Buffer{})
	assert.Equal(t, exitConfig, code)
}

func TestExecute_ErrorCategories(t *testing.T) {
	tests := []struct {
		name   string
		runErr error
		newErr error
		want   int
	}{
		{"build failure", domain.NewBuildError("radius", "radius:latest", errors.New("boom")), nil, exitBuild},
		{"config failure", domain.NewConfigError("/c/run_config.json", errors.New("bad")), nil, exitConfig},
		{"lock", domain.NewLockError("radius"), nil, exitLock},
		{"docker unreachable", nil, domain.NewConnectionError("docker", errors.New("no socket")), exitConnection},
		{"unexpected", errors.New("boom"), nil, exitUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := setupWorkdir(t, true)
			fake := &fakeApplication{runErr: tt.runErr}
			code := execute([]string{"--config", cfgPath, "-d"}, viper.New(), factoryFor(fake, tt.newErr), &bytes.Buffer{})
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestExitCode_JoinedErrors(t *testing.T) {
	err := errors.Join(
		domain.NewBuildError("a", "a:1", errors.New("boom")),
		domain.NewBuildError("b", "b:1", errors.New("boom")),
	)
	assert.Equal(t, exitBuild, exitCode(err))
	assert.Equal(t, exitOK, exitCode(nil))
}

func TestPreParseConfigFlag(t *testing.T) {
	assert.Equal(t, "c.yaml", preParseConfigFlag([]string{"-b", "--config", "c.yaml", "--deploy"}))
	assert.Equal(t, "c.yaml", preParseConfigFlag([]string{"--config=c.yaml"}))
	assert.Equal(t, "", preParseConfigFlag([]string{"status", "-b"}))
}
