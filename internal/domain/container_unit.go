package domain

// ImageSpec is a single image build declared in a unit's build config.
type ImageSpec struct {
	File string `json:"file" yaml:"file"`
	Tag  string `json:"tag" yaml:"tag"`
}

// BuildConfig is the ordered list of images a unit builds.
type BuildConfig struct {
	Build []ImageSpec `json:"build" yaml:"build"`
}

// Tags returns the declared image tags in build order.
func (bc BuildConfig) Tags() []string {
	tags := make([]string, 0, len(bc.Build))
	for _, img := range bc.Build {
		tags = append(tags, img.Tag)
	}
	return tags
}

// RunSpec describes how one container is started.
type RunSpec struct {
	Image       string         `json:"image" yaml:"image"`
	Enabled     bool           `json:"enabled" yaml:"enabled"`
	Detach      bool           `json:"detach" yaml:"detach"`
	Privileged  bool           `json:"privileged" yaml:"privileged"`
	Ports       map[string]any `json:"ports" yaml:"ports"`
	Environment map[string]any `json:"environment" yaml:"environment"`
}

// RunConfig maps container names to their run settings.
type RunConfig map[string]RunSpec

// ContainerUnit is one deployable component discovered under the containers root.
type ContainerUnit struct {
	Name        string
	ContextPath string
	BuildConfig BuildConfig
	RunConfig   RunConfig
}
