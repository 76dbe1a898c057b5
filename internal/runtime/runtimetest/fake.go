// Package runtimetest provides an in-memory container runtime for tests.
package runtimetest

import (
	"context"
	"errors"
	"sync"

	"github.com/auto-dns/container-deployer/internal/domain"
)

var ErrBuildFailed = errors.New("build failed")

type BuildCall struct {
	ContextPath string
	Dockerfile  string
	Tag         string
}

// Fake records every call. Successful builds add the tag to Images, and
// started containers are reported as "running" by ContainerStatus. Builds of
// BlockBuild tags wait for their context to end and return its error.
type Fake struct {
	mu sync.Mutex

	Images     map[string]bool
	Statuses   map[string]string
	FailBuild  map[string]error
	FailRun    map[string]error
	BlockBuild map[string]bool
	ImageErr   error
	StatusErr  error
	BuildCalls []BuildCall
	RunCalls   []domain.RunRequest
	ExistCalls []string
}

func NewFake() *Fake {
	return &Fake{
		Images:     map[string]bool{},
		Statuses:   map[string]string{},
		FailBuild:  map[string]error{},
		FailRun:    map[string]error{},
		BlockBuild: map[string]bool{},
	}
}

func (f *Fake) BuildImage(ctx context.Context, contextPath, dockerfile, tag string) error {
	f.mu.Lock()
	f.BuildCalls = append(f.BuildCalls, BuildCall{ContextPath: contextPath, Dockerfile: dockerfile, Tag: tag})
	block := f.BlockBuild[tag]
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailBuild[tag]; ok {
		if err == nil {
			err = ErrBuildFailed
		}
		return err
	}
	f.Images[tag] = true
	return nil
}

func (f *Fake) ImageExists(_ context.Context, tag string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExistCalls = append(f.ExistCalls, tag)
	if f.ImageErr != nil {
		return false, f.ImageErr
	}
	return f.Images[tag], nil
}

func (f *Fake) RunContainer(_ context.Context, req domain.RunRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RunCalls = append(f.RunCalls, req)
	if err, ok := f.FailRun[req.Name]; ok {
		return err
	}
	f.Statuses[req.Name] = "running"
	return nil
}

func (f *Fake) ContainerStatus(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StatusErr != nil {
		return "", f.StatusErr
	}
	status, ok := f.Statuses[name]
	if !ok {
		return "", domain.ErrContainerNotFound
	}
	return status, nil
}

// BuiltTags returns the tags passed to BuildImage, in call order.
func (f *Fake) BuiltTags() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	tags := make([]string, 0, len(f.BuildCalls))
	for _, c := range f.BuildCalls {
		tags = append(tags, c.Tag)
	}
	return tags
}

// Runs returns a copy of the recorded RunContainer requests.
func (f *Fake) Runs() []domain.RunRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RunRequest(nil), f.RunCalls...)
}
