package domain

import (
	"errors"
	"fmt"
)

// ErrContainerNotFound is returned by the runtime when a container does not exist.
var ErrContainerNotFound = errors.New("container not found")

// ConfigError reports a missing or malformed configuration document.
type ConfigError struct {
	Path string
	Err  error
}

func NewConfigError(path string, err error) *ConfigError {
	return &ConfigError{Path: path, Err: err}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config collection failed: %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ArgumentsError reports a missing or malformed argument definition document.
type ArgumentsError struct {
	Path string
	Err  error
}

func NewArgumentsError(path string, err error) *ArgumentsError {
	return &ArgumentsError{Path: path, Err: err}
}

func (e *ArgumentsError) Error() string {
	return fmt.Sprintf("can't find argument file %s - please reference the project documentation for the argument file: %v", e.Path, e.Err)
}

func (e *ArgumentsError) Unwrap() error {
	return e.Err
}

// BuildError reports an image that failed to build.
type BuildError struct {
	Unit string
	Tag  string
	Err  error
}

func NewBuildError(unit, tag string, err error) *BuildError {
	return &BuildError{Unit: unit, Tag: tag, Err: err}
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build %s for unit %s: %v", e.Tag, e.Unit, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// ConnectionError reports a backend (container runtime or etcd) that could not be reached.
type ConnectionError struct {
	Backend string
	Err     error
}

func NewConnectionError(backend string, err error) *ConnectionError {
	return &ConnectionError{Backend: backend, Err: err}
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// LockError reports a deploy lock that could not be acquired in time.
type LockError struct {
	Key string
}

func NewLockError(key string) *LockError {
	return &LockError{Key: key}
}

func (e *LockError) Error() string {
	return fmt.Sprintf("failed to acquire lock on %s", e.Key)
}
