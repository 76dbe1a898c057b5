package app

import (
	"context"

	"github.com/auto-dns/container-deployer/internal/domain"
)

type runtimeGateway interface {
	BuildImage(ctx context.Context, contextPath, dockerfile, tag string) error
	ImageExists(ctx context.Context, tag string) (bool, error)
	RunContainer(ctx context.Context, req domain.RunRequest) error
	ContainerStatus(ctx context.Context, name string) (string, error)
}

type unitDiscoverer interface {
	Discover(root string) ([]domain.ContainerUnit, error)
}
