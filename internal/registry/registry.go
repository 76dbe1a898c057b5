package registry

import (
	"context"

	"github.com/auto-dns/container-deployer/internal/domain"
)

// Registry coordinates deployments across orchestrator runs and remembers their outcomes.
type Registry interface {
	LockTransaction(ctx context.Context, keys []string, fn func() error) error
	Record(ctx context.Context, report *domain.UnitReport) error
	List(ctx context.Context) ([]domain.DeploymentRecord, error)
	Close() error
}

// NopRegistry is used when no etcd endpoints are configured.
type NopRegistry struct{}

func (NopRegistry) LockTransaction(_ context.Context, _ []string, fn func() error) error {
	return fn()
}

func (NopRegistry) Record(context.Context, *domain.UnitReport) error { return nil }

func (NopRegistry) List(context.Context) ([]domain.DeploymentRecord, error) { return nil, nil }

func (NopRegistry) Close() error { return nil }
