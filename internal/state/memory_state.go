package state

import (
	"sort"
	"sync"
	"time"

	"github.com/auto-dns/container-deployer/internal/domain"
)

// MemoryState stores the reports of the current run safely.
type MemoryState struct {
	mu    sync.RWMutex
	units map[string]*unitState
}

func NewMemoryState() *MemoryState {
	return &MemoryState{
		units: make(map[string]*unitState),
	}
}

// Upsert inserts or replaces the report for a unit.
func (s *MemoryState) Upsert(report *domain.UnitReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[report.Unit] = &unitState{
		Report:      report,
		LastUpdated: time.Now(),
	}
}

// Get returns the report stored for unit.
func (s *MemoryState) Get(unit string) (*domain.UnitReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	us, ok := s.units[unit]
	if !ok {
		return nil, false
	}
	return us.Report, true
}

// Reports returns all stored reports sorted by unit name.
func (s *MemoryState) Reports() []*domain.UnitReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reports := make([]*domain.UnitReport, 0, len(s.units))
	for _, us := range s.units {
		reports = append(reports, us.Report)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Unit < reports[j].Unit })
	return reports
}

func (s *MemoryState) Summary() Summary {
	var sum Summary
	for _, r := range s.Reports() {
		sum.Units++
		sum.Built += len(r.Built)
		if r.Err != nil {
			sum.Failed = append(sum.Failed, r.Unit)
		}
		for _, o := range r.Outcomes {
			switch o.Result {
			case domain.DeployResultDeployed:
				sum.Deployed++
			case domain.DeployResultNotReady:
				sum.NotReady++
			case domain.DeployResultDisabled:
				sum.Disabled++
			case domain.DeployResultFailed:
				sum.RunFails++
			}
		}
	}
	return sum
}
