// Package deployer runs the build and deploy phases for a single container unit.
package deployer

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/auto-dns/container-deployer/internal/domain"
	"github.com/auto-dns/container-deployer/internal/util"
)

// Deployer owns one container unit and drives its phases against the runtime.
type Deployer struct {
	unit    domain.ContainerUnit
	runtime runtimeGateway
	logger  zerolog.Logger
}

func New(unit domain.ContainerUnit, runtime runtimeGateway, logger zerolog.Logger) *Deployer {
	return &Deployer{
		unit:    unit,
		runtime: runtime,
		logger:  logger.With().Str("unit", unit.Name).Logger(),
	}
}

func (d *Deployer) Name() string {
	return d.unit.Name
}

func (d *Deployer) String() string {
	return d.unit.Name
}

// Images returns the unit's image specs in build order.
func (d *Deployer) Images() []domain.ImageSpec {
	return d.unit.BuildConfig.Build
}

// Containers returns the unit's container names in deploy order.
func (d *Deployer) Containers() []string {
	return util.SortedKeys(d.unit.RunConfig)
}

// Run executes the selected phases in their fixed order. A build failure stops
// the run and is returned; every other phase outcome is recorded in the report.
func (d *Deployer) Run(ctx context.Context, phases domain.Phases) (*domain.UnitReport, error) {
	report := &domain.UnitReport{Unit: d.unit.Name, Phases: phases}
	d.logger.Info().Str("phases", phases.String()).Msg("Beginning deployment")

	for _, phase := range phases.Ordered() {
		switch phase {
		case domain.PhaseBuild:
			built, err := d.Build(ctx)
			report.Built = built
			if err != nil {
				report.Err = err
				return report, err
			}
		case domain.PhaseDeploy:
			report.Outcomes = d.Deploy(ctx)
		case domain.PhaseLog:
			d.logger.Warn().Msg("Log not yet available")
		case domain.PhasePush:
			d.logger.Warn().Msg("Push not yet available")
		case domain.PhaseTest:
			d.logger.Warn().Msg("Test bed not yet available")
		case domain.PhaseUpdate:
			d.logger.Warn().Msg("Update not yet available")
		}
		if err := ctx.Err(); err != nil {
			report.Err = err
			return report, err
		}
	}

	d.logger.Info().Msg("Deployment complete")
	return report, nil
}

// Build builds every declared image in order and returns the tags built. The
// first failure is returned as a *domain.BuildError and later images are not attempted.
func (d *Deployer) Build(ctx context.Context) ([]string, error) {
	var built []string
	for _, img := range d.unit.BuildConfig.Build {
		log := d.logger.With().Str("tag", img.Tag).Str("file", img.File).Logger()
		log.Info().Msg("Building image")
		if err := d.runtime.BuildImage(ctx, d.unit.ContextPath, img.File, img.Tag); err != nil {
			log.Error().Err(err).Msg("Failed to build image")
			return built, domain.NewBuildError(d.unit.Name, img.Tag, err)
		}
		log.Info().Msg("Successful build")
		built = append(built, img.Tag)
	}
	return built, nil
}

// Deploy starts every enabled container, provided all of the unit's images
// are present. Failures are recorded per container and never abort the loop.
func (d *Deployer) Deploy(ctx context.Context) []domain.DeployOutcome {
	names := d.Containers()
	outcomes := make([]domain.DeployOutcome, 0, len(names))
	// Readiness is evaluated once per deploy phase and applies to every container.
	ready := d.ImagesAvailable(ctx)

	for _, name := range names {
		spec := d.unit.RunConfig[name]
		log := d.logger.With().Str("container", name).Str("image", spec.Image).Logger()
		log.Info().Msg("Deploying container")
		outcome := domain.DeployOutcome{Container: name, Image: spec.Image}

		switch {
		case !ready:
			log.Warn().Msg("Cannot deploy container: unit images are not all available")
			outcome.Result = domain.DeployResultNotReady
		case !spec.Enabled:
			log.Info().Msg("Container disabled")
			outcome.Result = domain.DeployResultDisabled
		default:
			if err := d.runtime.RunContainer(ctx, domain.NewRunRequest(name, spec)); err != nil {
				log.Error().Err(err).Msg("Failed to deploy container")
				outcome.Result = domain.DeployResultFailed
				outcome.Err = err
			} else {
				log.Info().Msg("Container deployed")
				outcome.Result = domain.DeployResultDeployed
			}
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// ImagesAvailable reports whether every image declared by the unit is present
// in the runtime. Lookup errors count as missing.
func (d *Deployer) ImagesAvailable(ctx context.Context) bool {
	for _, tag := range d.unit.BuildConfig.Tags() {
		ok, err := d.runtime.ImageExists(ctx, tag)
		if err != nil {
			d.logger.Warn().Err(err).Str("tag", tag).Msg("Image lookup failed")
			return false
		}
		if !ok {
			d.logger.Debug().Str("tag", tag).Msg("Image missing")
			return false
		}
	}
	return true
}

// ContainersStatus returns the live status of every container in the run
// config, using domain.StatusNone for containers the runtime does not know.
func (d *Deployer) ContainersStatus(ctx context.Context) []domain.ContainerStatus {
	names := d.Containers()
	statuses := make([]domain.ContainerStatus, 0, len(names))
	for _, name := range names {
		status, err := d.runtime.ContainerStatus(ctx, name)
		if err != nil {
			if !errors.Is(err, domain.ErrContainerNotFound) {
				d.logger.Warn().Err(err).Str("container", name).Msg("Container status lookup failed")
			}
			status = domain.StatusNone
		}
		statuses = append(statuses, domain.ContainerStatus{Name: name, Status: status})
	}
	return statuses
}
