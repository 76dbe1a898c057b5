package domain

// RunRequest is what the runtime needs to create and start a container.
type RunRequest struct {
	Name        string
	Image       string
	Detach      bool
	Privileged  bool
	Ports       map[string]any
	Environment map[string]any
}

func NewRunRequest(name string, spec RunSpec) RunRequest {
	return RunRequest{
		Name:        name,
		Image:       spec.Image,
		Detach:      spec.Detach,
		Privileged:  spec.Privileged,
		Ports:       spec.Ports,
		Environment: spec.Environment,
	}
}
