package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auto-dns/container-deployer/internal/config"
	"github.com/auto-dns/container-deployer/internal/domain"
	"github.com/auto-dns/container-deployer/internal/registry"
	"github.com/auto-dns/container-deployer/internal/runtime/runtimetest"
)

type recordingRegistry struct {
	registry.NopRegistry
	mu      sync.Mutex
	locked  []string
	reports []*domain.UnitReport
	lockErr error
}

func (r *recordingRegistry) LockTransaction(_ context.Context, keys []string, fn func() error) error {
	r.mu.Lock()
	r.locked = append(r.locked, keys...)
	lockErr := r.lockErr
	r.mu.Unlock()
	if lockErr != nil {
		return lockErr
	}
	return fn()
}

func (r *recordingRegistry) Record(_ context.Context, report *domain.UnitReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func writeUnit(t *testing.T, root, name, build, run string) {
	t.Helper()
	unitDir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Join(unitDir, "container"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(unitDir, "deployer"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(unitDir, "deployer", "build_config.json"), []byte(build), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(unitDir, "deployer", "run_config.json"), []byte(run), 0o644))
}

func testConfig(root string) *config.Config {
	return &config.Config{
		App: config.AppConfig{
			ContainersDir:   root,
			BuildConfigName: "build_config",
			RunConfigName:   "run_config",
		},
	}
}

const radiusBuild = `{"build": [{"file": "Dockerfile", "tag": "radius:latest"}]}`

const radiusRun = `{"radius-svc": {"image": "radius:latest", "enabled": true, "detach": true, "privileged": false, "ports": {}, "environment": {}}}`

func TestRun_EndToEndRadius(t *testing.T) {
	root := t.TempDir()
	writeUnit(t, root, "radius", radiusBuild, radiusRun)
	rt := runtimetest.NewFake()
	reg := &recordingRegistry{}
	a := newApp(testConfig(root), zerolog.Nop(), rt, reg)

	err := a.Run(context.Background(), domain.NewPhases(domain.PhaseBuild, domain.PhaseDeploy))
	require.NoError(t, err)

	runs := rt.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "radius-svc", runs[0].Name)
	assert.Equal(t, "radius:latest", runs[0].Image)
	assert.True(t, runs[0].Detach)
	assert.False(t, runs[0].Privileged)

	require.Len(t, rt.BuildCalls, 1)
	assert.Equal(t, filepath.Join(root, "radius", "container"), rt.BuildCalls[0].ContextPath)
	assert.Equal(t, "Dockerfile", rt.BuildCalls[0].Dockerfile)

	assert.Equal(t, []string{"radius"}, reg.locked)
	require.Len(t, reg.reports, 1)
	assert.Equal(t, domain.DeployResultDeployed, reg.reports[0].Outcomes[0].Result)

	statuses, err := a.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []UnitStatus{{
		Unit:       "radius",
		Containers: []domain.ContainerStatus{{Name: "radius-svc", Status: "running"}},
	}}, statuses)
}

func TestRun_ConfigErrorStopsBeforeBuild(t *testing.T) {
	root := t.TempDir()
	writeUnit(t, root, "a-good", radiusBuild, radiusRun)
	writeUnit(t, root, "b-bad", radiusBuild, `{"svc": `)
	rt := runtimetest.NewFake()
	a := newApp(testConfig(root), zerolog.Nop(), rt, registry.NopRegistry{})

	err := a.Run(context.Background(), domain.NewPhases(domain.PhaseBuild))

	var cfgErr *domain.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Empty(t, rt.BuildCalls)
}

func TestRun_BuildFailureHaltsRemainingUnits(t *testing.T) {
	root := t.TempDir()
	writeUnit(t, root, "a", `{"build": [{"file": "Dockerfile", "tag": "a:1"}]}`, `{}`)
	writeUnit(t, root, "b", `{"build": [{"file": "Dockerfile", "tag": "b:1"}]}`, `{}`)
	rt := runtimetest.NewFake()
	rt.FailBuild["a:1"] = nil
	a := newApp(testConfig(root), zerolog.Nop(), rt, registry.NopRegistry{})

	err := a.Run(context.Background(), domain.NewPhases(domain.PhaseBuild, domain.PhaseDeploy))

	var buildErr *domain.BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, "a:1", buildErr.Tag)
	assert.Equal(t, []string{"a:1"}, rt.BuiltTags())
}

func TestRun_ContinueOnError(t *testing.T) {
	root := t.TempDir()
	writeUnit(t, root, "a", `{"build": [{"file": "Dockerfile", "tag": "a:1"}]}`, `{"a-svc": {"image": "a:1", "enabled": true}}`)
	writeUnit(t, root, "b", `{"build": [{"file": "Dockerfile", "tag": "b:1"}]}`, `{"b-svc": {"image": "b:1", "enabled": true}}`)
	rt := runtimetest.NewFake()
	rt.FailBuild["a:1"] = nil
	cfg := testConfig(root)
	cfg.App.ContinueOnError = true
	a := newApp(cfg, zerolog.Nop(), rt, registry.NopRegistry{})

	err := a.Run(context.Background(), domain.NewPhases(domain.PhaseBuild, domain.PhaseDeploy))

	var buildErr *domain.BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, "a:1", buildErr.Tag)
	assert.Equal(t, []string{"a:1", "b:1"}, rt.BuiltTags())

	runs := rt.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "b-svc", runs[0].Name)

	sum := a.state.Summary()
	assert.Equal(t, []string{"a"}, sum.Failed)
	assert.Equal(t, 1, sum.Deployed)
}

func TestRun_ParallelBuilds(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		writeUnit(t, root, name,
			`{"build": [{"file": "Dockerfile", "tag": "`+name+`:1"}]}`,
			`{"`+name+`-svc": {"image": "`+name+`:1", "enabled": true, "detach": true}}`)
	}
	rt := runtimetest.NewFake()
	cfg := testConfig(root)
	cfg.App.ParallelBuilds = true
	a := newApp(cfg, zerolog.Nop(), rt, registry.NopRegistry{})

	err := a.Run(context.Background(), domain.NewPhases(domain.PhaseBuild, domain.PhaseDeploy))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a:1", "b:1", "c:1"}, rt.BuiltTags())
	var names []string
	for _, r := range rt.Runs() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"a-svc", "b-svc", "c-svc"}, names, "deploys stay sequential in unit order")

	report, ok := a.state.Get("b")
	require.True(t, ok)
	assert.Equal(t, []string{"b:1"}, report.Built)
}

func TestRun_ParallelBuildFailure(t *testing.T) {
	root := t.TempDir()
	writeUnit(t, root, "a", `{"build": [{"file": "Dockerfile", "tag": "a:1"}]}`, `{"a-svc": {"image": "a:1", "enabled": true}}`)
	writeUnit(t, root, "b", `{"build": [{"file": "Dockerfile", "tag": "b:1"}]}`, `{"b-svc": {"image": "b:1", "enabled": true}}`)
	rt := runtimetest.NewFake()
	rt.FailBuild["b:1"] = nil
	cfg := testConfig(root)
	cfg.App.ParallelBuilds = true
	a := newApp(cfg, zerolog.Nop(), rt, registry.NopRegistry{})

	err := a.Run(context.Background(), domain.NewPhases(domain.PhaseBuild, domain.PhaseDeploy))

	var buildErr *domain.BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, "b:1", buildErr.Tag)
	assert.Empty(t, rt.Runs())
}

func TestRun_ParallelBuildFailure_CancelledSiblingsNotReported(t *testing.T) {
	root := t.TempDir()
	writeUnit(t, root, "a", `{"build": [{"file": "Dockerfile", "tag": "a:1"}]}`, `{"a-svc": {"image": "a:1", "enabled": true}}`)
	writeUnit(t, root, "b", `{"build": [{"file": "Dockerfile", "tag": "b:1"}]}`, `{"b-svc": {"image": "b:1", "enabled": true}}`)
	rt := runtimetest.NewFake()
	rt.BlockBuild["a:1"] = true
	rt.FailBuild["b:1"] = nil
	cfg := testConfig(root)
	cfg.App.ParallelBuilds = true
	a := newApp(cfg, zerolog.Nop(), rt, registry.NopRegistry{})

	err := a.Run(context.Background(), domain.NewPhases(domain.PhaseBuild, domain.PhaseDeploy))

	var buildErr *domain.BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, "b:1", buildErr.Tag)
	assert.Equal(t, []string{"b"}, a.state.Summary().Failed)
	_, ok := a.state.Get("a")
	assert.False(t, ok, "cancelled build has no report")
}

func TestRun_LockError(t *testing.T) {
	root := t.TempDir()
	writeUnit(t, root, "radius", radiusBuild, radiusRun)
	rt := runtimetest.NewFake()
	reg := &recordingRegistry{lockErr: domain.NewLockError("radius")}
	a := newApp(testConfig(root), zerolog.Nop(), rt, reg)

	err := a.Run(context.Background(), domain.NewPhases(domain.PhaseBuild))

	var lockErr *domain.LockError
	require.True(t, errors.As(err, &lockErr))
	assert.Empty(t, rt.BuildCalls)
}

func TestRun_NoPhases(t *testing.T) {
	root := t.TempDir()
	writeUnit(t, root, "radius", radiusBuild, radiusRun)
	rt := runtimetest.NewFake()
	a := newApp(testConfig(root), zerolog.Nop(), rt, registry.NopRegistry{})

	require.NoError(t, a.Run(context.Background(), domain.NewPhases()))
	assert.Empty(t, rt.BuildCalls)
	assert.Empty(t, rt.Runs())
}

func TestStatus_UnknownContainers(t *testing.T) {
	root := t.TempDir()
	writeUnit(t, root, "radius", radiusBuild, radiusRun)
	a := newApp(testConfig(root), zerolog.Nop(), runtimetest.NewFake(), registry.NopRegistry{})

	statuses, err := a.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, domain.StatusNone, statuses[0].Containers[0].Status)
}

func TestHistory(t *testing.T) {
	a := newApp(testConfig(t.TempDir()), zerolog.Nop(), runtimetest.NewFake(), registry.NopRegistry{})
	records, err := a.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, a.Close())
}
