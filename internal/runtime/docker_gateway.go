// Package runtime adapts the Docker Engine API to the operations the deployer needs.
package runtime

import (
	"context"
	"fmt"
	"io"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/rs/zerolog"

	"github.com/auto-dns/container-deployer/internal/domain"
)

// DockerGateway implements the deployer's runtime operations on a Docker client.
type DockerGateway struct {
	cli    *client.Client
	logger zerolog.Logger
}

// NewDockerClient connects to the daemon named by host, or by the environment when host is empty.
func NewDockerClient(ctx context.Context, host string) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, domain.NewConnectionError("docker", err)
	}
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, domain.NewConnectionError("docker", err)
	}
	return cli, nil
}

func NewDockerGateway(cli *client.Client, logger zerolog.Logger) *DockerGateway {
	return &DockerGateway{
		cli:    cli,
		logger: logger.With().Str("component", "docker_gateway").Logger(),
	}
}

// BuildImage builds dockerfile inside contextPath and tags the result. Intermediate
// containers are always removed. Errors reported in the build output stream fail the build.
func (g *DockerGateway) BuildImage(ctx context.Context, contextPath, dockerfile, tag string) error {
	buildCtx, err := archive.TarWithOptions(contextPath, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("create build context: %w", err)
	}
	defer buildCtx.Close()

	resp, err := g.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{tag},
		Dockerfile:  dockerfile,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return fmt.Errorf("build image: %w", err)
	}
	defer resp.Body.Close()

	out := &logWriter{logger: g.logger.With().Str("tag", tag).Logger()}
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, nil); err != nil {
		return fmt.Errorf("build image: %w", err)
	}
	return nil
}

// ImageExists reports whether tag is present in the local image store.
func (g *DockerGateway) ImageExists(ctx context.Context, tag string) (bool, error) {
	_, _, err := g.cli.ImageInspectWithRaw(ctx, tag)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("inspect image %s: %w", tag, err)
	}
	return true, nil
}

// RunContainer creates and starts a container. A non-detached container is
// waited on and a non-zero exit status is returned as an error.
func (g *DockerGateway) RunContainer(ctx context.Context, req domain.RunRequest) error {
	exposed, bindings, err := toPortBindings(req.Ports)
	if err != nil {
		return fmt.Errorf("container %s: %w", req.Name, err)
	}

	containerConfig := &container.Config{
		Image:        req.Image,
		Env:          toEnv(req.Environment),
		ExposedPorts: exposed,
	}
	hostConfig := &container.HostConfig{
		Privileged:   req.Privileged,
		PortBindings: bindings,
	}

	resp, err := g.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, req.Name)
	if err != nil {
		return fmt.Errorf("create container %s: %w", req.Name, err)
	}
	for _, w := range resp.Warnings {
		g.logger.Warn().Str("container", req.Name).Msg(w)
	}

	if err := g.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", req.Name, err)
	}
	g.logger.Debug().Str("container", req.Name).Str("id", resp.ID).Msg("Container started")

	if req.Detach {
		return nil
	}

	statusCh, errCh := g.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("wait for container %s: %w", req.Name, err)
		}
	case status := <-statusCh:
		if status.Error != nil {
			return fmt.Errorf("wait for container %s: %s", req.Name, status.Error.Message)
		}
		if status.StatusCode != 0 {
			return fmt.Errorf("container %s exited with status %d", req.Name, status.StatusCode)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// ContainerStatus returns the runtime state of the named container, or
// domain.ErrContainerNotFound.
func (g *DockerGateway) ContainerStatus(ctx context.Context, name string) (string, error) {
	resp, err := g.cli.ContainerInspect(ctx, name)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return "", domain.ErrContainerNotFound
		}
		return "", fmt.Errorf("inspect container %s: %w", name, err)
	}
	if resp.ContainerJSONBase == nil || resp.State == nil {
		return "", fmt.Errorf("inspect container %s: missing state", name)
	}
	return resp.State.Status, nil
}

// logWriter forwards build output to the logger at debug level, one event per line.
type logWriter struct {
	logger zerolog.Logger
}

var _ io.Writer = (*logWriter)(nil)

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.logger.Debug().Msg(line)
		}
	}
	return len(p), nil
}
