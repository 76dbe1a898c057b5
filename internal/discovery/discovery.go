// Package discovery finds container units under a root directory and loads
// their build and run configuration.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/auto-dns/container-deployer/internal/domain"
	"github.com/auto-dns/container-deployer/internal/loader"
	"github.com/auto-dns/container-deployer/internal/util"
	"github.com/rs/zerolog"
)

const (
	ContextDirName  = "container"
	DeployerDirName = "deployer"
)

type Options struct {
	BuildConfigName string
	RunConfigName   string
	// ValidateReferences turns run entries whose image is not built by the
	// unit into configuration errors instead of warnings.
	ValidateReferences bool
}

type Discoverer struct {
	opts   Options
	logger zerolog.Logger
}

func NewDiscoverer(opts Options, logger zerolog.Logger) *Discoverer {
	if opts.BuildConfigName == "" {
		opts.BuildConfigName = "build_config"
	}
	if opts.RunConfigName == "" {
		opts.RunConfigName = "run_config"
	}
	return &Discoverer{opts: opts, logger: logger}
}

// Discover returns one ContainerUnit per immediate, non-hidden subdirectory of
// root, sorted by name. Any unit that fails to load aborts the whole scan.
func (d *Discoverer) Discover(root string) ([]domain.ContainerUnit, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, domain.NewConfigError(root, err)
	}

	dirs := util.Filter(entries, func(e os.DirEntry) bool {
		if strings.HasPrefix(e.Name(), ".") {
			return false
		}
		if e.Type()&os.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(root, e.Name()))
			return err == nil && info.IsDir()
		}
		return e.IsDir()
	})
	names := util.Map(dirs, func(e os.DirEntry) string { return e.Name() })
	sort.Strings(names)

	units := make([]domain.ContainerUnit, 0, len(names))
	for _, name := range names {
		unit, err := d.loadUnit(root, name)
		if err != nil {
			return nil, err
		}
		d.logger.Debug().
			Str("unit", unit.Name).
			Int("images", len(unit.BuildConfig.Build)).
			Int("containers", len(unit.RunConfig)).
			Msg("Discovered container unit")
		units = append(units, unit)
	}
	return units, nil
}

func (d *Discoverer) loadUnit(root, name string) (domain.ContainerUnit, error) {
	unitDir := filepath.Join(root, name)
	contextPath := filepath.Join(unitDir, ContextDirName)
	if info, err := os.Stat(contextPath); err != nil {
		return domain.ContainerUnit{}, domain.NewConfigError(contextPath, err)
	} else if !info.IsDir() {
		return domain.ContainerUnit{}, domain.NewConfigError(contextPath, fmt.Errorf("build context is not a directory"))
	}

	deployerDir := filepath.Join(unitDir, DeployerDirName)
	buildPath, err := loader.Resolve(deployerDir, d.opts.BuildConfigName)
	if err != nil {
		return domain.ContainerUnit{}, err
	}
	runPath, err := loader.Resolve(deployerDir, d.opts.RunConfigName)
	if err != nil {
		return domain.ContainerUnit{}, err
	}

	buildConfig, err := loader.Load[domain.BuildConfig](buildPath)
	if err != nil {
		return domain.ContainerUnit{}, err
	}
	if err := validateBuildConfig(buildConfig); err != nil {
		return domain.ContainerUnit{}, domain.NewConfigError(buildPath, err)
	}

	runConfig, err := loader.Load[domain.RunConfig](runPath)
	if err != nil {
		return domain.ContainerUnit{}, err
	}
	if runConfig == nil {
		runConfig = domain.RunConfig{}
	}
	for _, ref := range danglingReferences(buildConfig, runConfig) {
		if d.opts.ValidateReferences {
			return domain.ContainerUnit{}, domain.NewConfigError(runPath,
				fmt.Errorf("container %s references image %q which is not built by unit %s", ref.container, ref.image, name))
		}
		d.logger.Warn().
			Str("unit", name).
			Str("container", ref.container).
			Str("image", ref.image).
			Msg("Run config references an image not declared in build config")
	}

	return domain.ContainerUnit{
		Name:        name,
		ContextPath: contextPath,
		BuildConfig: buildConfig,
		RunConfig:   runConfig,
	}, nil
}
