package main

import (
	"context"

	"github.com/auto-dns/container-deployer/internal/app"
	"github.com/auto-dns/container-deployer/internal/domain"
)

type application interface {
	Run(ctx context.Context, phases domain.Phases) error
	Status(ctx context.Context) ([]app.UnitStatus, error)
	History(ctx context.Context) ([]domain.DeploymentRecord, error)
	Close() error
}
