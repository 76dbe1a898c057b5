package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	dockerCli "github.com/docker/docker/client"
	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"
	"golang.org/x/sync/errgroup"

	"github.com/auto-dns/container-deployer/internal/config"
	"github.com/auto-dns/container-deployer/internal/deployer"
	"github.com/auto-dns/container-deployer/internal/discovery"
	"github.com/auto-dns/container-deployer/internal/domain"
	"github.com/auto-dns/container-deployer/internal/registry"
	"github.com/auto-dns/container-deployer/internal/runtime"
	"github.com/auto-dns/container-deployer/internal/state"
	"github.com/auto-dns/container-deployer/internal/util"
)

type App struct {
	cfg          *config.Config
	dockerClient *dockerCli.Client
	etcdClient   *clientv3.Client
	runtime      runtimeGateway
	discoverer   unitDiscoverer
	registry     registry.Registry
	state        *state.MemoryState
	logger       zerolog.Logger
}

// UnitStatus is the live status of every container of one unit.
type UnitStatus struct {
	Unit       string
	Containers []domain.ContainerStatus
}

// New creates a new App by wiring up all dependencies. The returned App owns
// the runtime and etcd connections; callers must Close it.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	dockerClient, err := runtime.NewDockerClient(ctx, cfg.Docker.Host)
	if err != nil {
		return nil, err
	}
	gateway := runtime.NewDockerGateway(dockerClient, logger)

	var (
		etcdClient *clientv3.Client
		reg        registry.Registry = registry.NopRegistry{}
	)
	if cfg.Etcd.Enabled() {
		etcdClient, err = registry.NewEtcdClient(&cfg.Etcd)
		if err != nil {
			_ = dockerClient.Close()
			return nil, err
		}
		reg = registry.NewEtcdRegistry(etcdClient, &cfg.Etcd, hostname(cfg), logger)
	}

	a := newApp(cfg, logger, gateway, reg)
	a.dockerClient = dockerClient
	a.etcdClient = etcdClient
	return a, nil
}

func newApp(cfg *config.Config, logger zerolog.Logger, gateway runtimeGateway, reg registry.Registry) *App {
	disc := discovery.NewDiscoverer(discovery.Options{
		BuildConfigName:    cfg.App.BuildConfigName,
		RunConfigName:      cfg.App.RunConfigName,
		ValidateReferences: cfg.App.ValidateReferences,
	}, logger)
	return &App{
		cfg:        cfg,
		runtime:    gateway,
		discoverer: disc,
		registry:   reg,
		state:      state.NewMemoryState(),
		logger:     logger,
	}
}

// Run discovers every unit and runs the selected phases for each, in name order.
// Configuration errors stop the run before anything is built. A build failure
// stops the run unless continue_on_error is set, in which case the remaining
// units still run and all failures are returned joined.
func (a *App) Run(ctx context.Context, phases domain.Phases) error {
	a.logger.Info().Str("phases", phases.String()).Str("root", a.cfg.App.ContainersDir).Msg("Application starting")

	deployers, err := a.deployers()
	if err != nil {
		return err
	}
	if len(phases) == 0 {
		a.logger.Warn().Msg("No phases selected, nothing to do")
		return nil
	}

	var errs []error
	failed := make(map[string]bool)
	prebuilt := make(map[string][]string)
	remaining := phases

	if phases.Has(domain.PhaseBuild) && a.cfg.App.ParallelBuilds && len(deployers) > 1 {
		buildErrs := a.buildAll(ctx, deployers, prebuilt)
		for _, be := range buildErrs {
			if !a.cfg.App.ContinueOnError {
				a.logSummary()
				return be.err
			}
			failed[be.unit] = true
			errs = append(errs, be.err)
		}
		remaining = phases.Without(domain.PhaseBuild)
	}

	for _, d := range deployers {
		if failed[d.Name()] {
			continue
		}
		report, err := a.runUnit(ctx, d, remaining)
		if report != nil {
			report.Built = append(prebuilt[d.Name()], report.Built...)
			a.state.Upsert(report)
			if err := a.registry.Record(ctx, report); err != nil {
				a.logger.Warn().Err(err).Str("unit", d.Name()).Msg("Failed to record deployment")
			}
		}
		if err != nil {
			if !a.cfg.App.ContinueOnError || errors.Is(err, context.Canceled) {
				a.logSummary()
				return err
			}
			a.logger.Error().Err(err).Str("unit", d.Name()).Msg("Unit failed, continuing with next unit")
			errs = append(errs, err)
		}
	}

	a.logSummary()
	if phases.Has(domain.PhaseDeploy) {
		a.logStatus(a.statuses(ctx, deployers))
	}
	return errors.Join(errs...)
}

func (a *App) runUnit(ctx context.Context, d *deployer.Deployer, phases domain.Phases) (*domain.UnitReport, error) {
	var report *domain.UnitReport
	err := a.registry.LockTransaction(ctx, []string{d.Name()}, func() error {
		var runErr error
		report, runErr = d.Run(ctx, phases)
		return runErr
	})
	if report == nil && err != nil {
		report = &domain.UnitReport{Unit: d.Name(), Phases: phases, Err: err}
	}
	return report, err
}

type unitError struct {
	unit string
	err  error
}

// buildAll runs every unit's build phase concurrently. Without
// continue_on_error the first failure cancels the other builds.
func (a *App) buildAll(ctx context.Context, deployers []*deployer.Deployer, built map[string][]string) []unitError {
	var (
		mu   sync.Mutex
		errs []unitError
	)
	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.App.ContinueOnError {
		g = &errgroup.Group{}
		gctx = ctx
	}

	for _, d := range deployers {
		g.Go(func() error {
			var tags []string
			err := a.registry.LockTransaction(gctx, []string{d.Name()}, func() error {
				var buildErr error
				tags, buildErr = d.Build(gctx)
				return buildErr
			})
			mu.Lock()
			defer mu.Unlock()
			built[d.Name()] = tags
			if err != nil {
				errs = append(errs, unitError{unit: d.Name(), err: err})
				if !a.cfg.App.ContinueOnError && errors.Is(err, context.Canceled) {
					return err
				}
				a.state.Upsert(&domain.UnitReport{Unit: d.Name(), Phases: domain.NewPhases(domain.PhaseBuild), Built: tags, Err: err})
			}
			return err
		})
	}
	_ = g.Wait()

	// Builds cancelled because another unit failed are not failures of their own.
	if !a.cfg.App.ContinueOnError && len(errs) > 1 {
		for _, e := range errs {
			var buildErr *domain.BuildError
			if errors.As(e.err, &buildErr) && !errors.Is(e.err, context.Canceled) {
				return []unitError{e}
			}
		}
	}
	return errs
}

// Status discovers every unit and returns its containers' live status.
func (a *App) Status(ctx context.Context) ([]UnitStatus, error) {
	deployers, err := a.deployers()
	if err != nil {
		return nil, err
	}
	statuses := a.statuses(ctx, deployers)
	a.logStatus(statuses)
	return statuses, nil
}

// History returns the deployment records kept in the registry.
func (a *App) History(ctx context.Context) ([]domain.DeploymentRecord, error) {
	records, err := a.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deployment records: %w", err)
	}
	for _, r := range records {
		a.logger.Info().
			Str("unit", r.Unit).
			Str("container", r.Container).
			Str("image", r.Image).
			Str("result", string(r.Result)).
			Str("deployed_by", r.Hostname).
			Time("deployed_at", r.DeployedAt).
			Msg("Deployment record")
	}
	return records, nil
}

func (a *App) Close() error {
	var firstErr error
	if a.dockerClient != nil {
		if err := a.dockerClient.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close docker client: %w", err)
		}
	}
	if a.etcdClient != nil {
		if err := a.etcdClient.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close etcd client: %w", err)
		}
	}
	return firstErr
}

func (a *App) deployers() ([]*deployer.Deployer, error) {
	units, err := a.discoverer.Discover(a.cfg.App.ContainersDir)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		a.logger.Warn().Str("root", a.cfg.App.ContainersDir).Msg("No container units found")
	}
	return util.Map(units, func(u domain.ContainerUnit) *deployer.Deployer {
		return deployer.New(u, a.runtime, a.logger)
	}), nil
}

func (a *App) statuses(ctx context.Context, deployers []*deployer.Deployer) []UnitStatus {
	return util.Map(deployers, func(d *deployer.Deployer) UnitStatus {
		return UnitStatus{Unit: d.Name(), Containers: d.ContainersStatus(ctx)}
	})
}

func (a *App) logStatus(statuses []UnitStatus) {
	for _, us := range statuses {
		for _, cs := range us.Containers {
			a.logger.Info().Str("unit", us.Unit).Str("container", cs.Name).Str("status", cs.Status).Msg("Container status")
		}
	}
}

func (a *App) logSummary() {
	sum := a.state.Summary()
	a.logger.Info().
		Int("units", sum.Units).
		Int("images_built", sum.Built).
		Int("deployed", sum.Deployed).
		Int("not_ready", sum.NotReady).
		Int("disabled", sum.Disabled).
		Int("run_failures", sum.RunFails).
		Strs("failed_units", sum.Failed).
		Msg("Run summary")
}

func hostname(cfg *config.Config) string {
	if cfg.App.Hostname != "" {
		return cfg.App.Hostname
	}
	h, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return h
}
