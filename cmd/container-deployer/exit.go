package main

import (
	"errors"

	"github.com/auto-dns/container-deployer/internal/domain"
)

const (
	exitOK         = 0
	exitUnexpected = 1
	exitArguments  = 2
	exitConfig     = 3
	exitBuild      = 4
	exitConnection = 5
	exitLock       = 6
)

// exitCode maps an error to the process exit status for its category.
func exitCode(err error) int {
	var (
		argErr  *domain.ArgumentsError
		cfgErr  *domain.ConfigError
		bldErr  *domain.BuildError
		connErr *domain.ConnectionError
		lockErr *domain.LockError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &argErr):
		return exitArguments
	case errors.As(err, &cfgErr):
		return exitConfig
	case errors.As(err, &bldErr):
		return exitBuild
	case errors.As(err, &connErr):
		return exitConnection
	case errors.As(err, &lockErr):
		return exitLock
	default:
		return exitUnexpected
	}
}
