package domain

import "strings"

type Phase string

const (
	PhaseBuild  Phase = "build"
	PhaseDeploy Phase = "deploy"
	PhaseLog    Phase = "log"
	PhasePush   Phase = "push"
	PhaseTest   Phase = "test"
	PhaseUpdate Phase = "update"
)

// PhaseOrder is the fixed order phases execute in.
var PhaseOrder = []Phase{PhaseBuild, PhaseDeploy, PhaseLog, PhasePush, PhaseTest, PhaseUpdate}

func (p Phase) IsValid() bool {
	switch p {
	case PhaseBuild, PhaseDeploy, PhaseLog, PhasePush, PhaseTest, PhaseUpdate:
		return true
	}
	return false
}

// Phases is the set of phases selected for a run.
type Phases map[Phase]bool

func NewPhases(phases ...Phase) Phases {
	ps := make(Phases, len(phases))
	for _, p := range phases {
		ps[p] = true
	}
	return ps
}

func (ps Phases) Has(p Phase) bool {
	return ps[p]
}

// Without returns a copy of ps with the given phases removed.
func (ps Phases) Without(phases ...Phase) Phases {
	out := make(Phases, len(ps))
	for p, on := range ps {
		out[p] = on
	}
	for _, p := range phases {
		delete(out, p)
	}
	return out
}

// Ordered returns the selected phases in execution order.
func (ps Phases) Ordered() []Phase {
	var out []Phase
	for _, p := range PhaseOrder {
		if ps[p] {
			out = append(out, p)
		}
	}
	return out
}

func (ps Phases) String() string {
	names := make([]string, 0, len(ps))
	for _, p := range ps.Ordered() {
		names = append(names, string(p))
	}
	return strings.Join(names, ",")
}
