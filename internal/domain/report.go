package domain

import "time"

type DeployResult string

const (
	DeployResultDeployed DeployResult = "deployed"
	DeployResultNotReady DeployResult = "not_ready"
	DeployResultDisabled DeployResult = "disabled"
	DeployResultFailed   DeployResult = "failed"
)

// StatusNone is reported for containers the runtime does not know about.
const StatusNone = "none"

type DeployOutcome struct {
	Container string
	Image     string
	Result    DeployResult
	Err       error
}

// UnitReport is the outcome of running a unit's phases.
type UnitReport struct {
	Unit     string
	Phases   Phases
	Built    []string
	Outcomes []DeployOutcome
	Err      error
}

type ContainerStatus struct {
	Name   string
	Status string
}

// DeploymentRecord is the persisted form of a DeployOutcome.
type DeploymentRecord struct {
	Unit       string       `json:"unit"`
	Container  string       `json:"container"`
	Image      string       `json:"image"`
	Result     DeployResult `json:"result"`
	Error      string       `json:"error,omitempty"`
	Hostname   string       `json:"hostname"`
	DeployedAt time.Time    `json:"deployed_at"`
}
