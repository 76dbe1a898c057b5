package state

import (
	"time"

	"github.com/auto-dns/container-deployer/internal/domain"
)

type unitState struct {
	Report      *domain.UnitReport
	LastUpdated time.Time
}

// Summary counts the outcomes of one run across all units.
type Summary struct {
	Units    int
	Failed   []string
	Built    int
	Deployed int
	NotReady int
	Disabled int
	RunFails int
}
