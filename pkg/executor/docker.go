package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"
)

const (
	labelManagedBy = "corpusforge.managed-by"
	labelJobID     = "corpusforge.job-id"
	labelTemplate  = "corpusforge.template"
	managedByValue = "corpusforge-executor"

	stopTimeout = 10 * time.Second
)

// DockerBackend implements Backend using the Docker Engine SDK. Jobs join
// the spec's network, else the configured default network, else one
// company-scoped bridge network shared by all of that company's jobs.
//
// Grounded on bdobrica-Ruriko's internal/ruriko/runtime/docker.Adapter:
// same label/network conventions, same create-start-inspect-remove shape.
type DockerBackend struct {
	client         *dockerclient.Client
	defaultNetwork string
}

// NewDockerBackend connects to the Docker daemon via DOCKER_HOST or the
// default socket.
func NewDockerBackend(defaultNetwork string) (*DockerBackend, error) {
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &DockerBackend{client: cli, defaultNetwork: defaultNetwork}, nil
}

// companyNetwork returns the bridge network name scoped to one company.
func companyNetwork(companyID int) string {
	return fmt.Sprintf("corpusforge-company-%d", companyID)
}

// ensureNetwork creates the company-scoped network idempotently.
func (b *DockerBackend) ensureNetwork(ctx context.Context, name string) error {
	nets, err := b.client.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return fmt.Errorf("list networks: %w", err)
	}
	for _, n := range nets {
		if n.Name == name {
			return nil
		}
	}
	_, err = b.client.NetworkCreate(ctx, name, network.CreateOptions{
		Driver:     "bridge",
		Attachable: true,
		Labels:     map[string]string{labelManagedBy: managedByValue},
	})
	if err != nil {
		return fmt.Errorf("create network %q: %w", name, err)
	}
	return nil
}

// Launch creates and starts a detached container from spec.
func (b *DockerBackend) Launch(ctx context.Context, spec JobSpec) (ExecutionInfo, error) {
	if spec.ImageName == "" {
		return ExecutionInfo{}, fmt.Errorf("executor: spec.ImageName is required")
	}

	netName := spec.DockerNetwork
	if netName == "" {
		netName = companyNetwork(spec.CompanyID)
		if b.defaultNetwork != "" {
			netName = b.defaultNetwork
		}
	}
	if err := b.ensureNetwork(ctx, netName); err != nil {
		return ExecutionInfo{}, err
	}

	env := make([]string, 0, len(spec.EnvVars))
	for k, v := range spec.EnvVars {
		env = append(env, k+"="+v)
	}

	labels := map[string]string{
		labelManagedBy: managedByValue,
		labelJobID:     spec.ContainerName,
		labelTemplate:  spec.TemplateName,
	}

	containerCfg := &container.Config{
		Image:  spec.Image(),
		Env:    env,
		Labels: labels,
	}
	hostCfg := &container.HostConfig{}
	networkCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{netName: {}},
	}

	resp, err := b.client.ContainerCreate(ctx, containerCfg, hostCfg, networkCfg, nil, spec.ContainerName)
	if err != nil {
		return ExecutionInfo{}, fmt.Errorf("create container: %w", err)
	}

	if err := b.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = b.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return ExecutionInfo{}, fmt.Errorf("start container: %w", err)
	}

	if _, err := b.client.ContainerInspect(ctx, resp.ID); err != nil {
		return ExecutionInfo{}, fmt.Errorf("inspect container after create: %w", err)
	}

	return ExecutionInfo{Mode: "docker", ID: resp.ID, Name: spec.ContainerName}, nil
}

// CheckStatus inspects the container's current state and exit code.
func (b *DockerBackend) CheckStatus(ctx context.Context, info ExecutionInfo) (StatusResult, error) {
	inspect, err := b.client.ContainerInspect(ctx, info.ID)
	if err != nil {
		if dockerclient.IsErrNotFound(err) {
			return StatusResult{State: JobStateFailed, Reason: "not found"}, nil
		}
		return StatusResult{}, fmt.Errorf("inspect container: %w", err)
	}

	switch strings.ToLower(inspect.State.Status) {
	case "exited", "dead":
		if inspect.State.ExitCode == 0 {
			return StatusResult{State: JobStateCompleted, ExitCode: 0}, nil
		}
		return StatusResult{
			State:    JobStateFailed,
			ExitCode: inspect.State.ExitCode,
			Reason:   fmt.Sprintf("exit code %d: %s", inspect.State.ExitCode, inspect.State.Error),
		}, nil
	default:
		return StatusResult{State: JobStateRunning}, nil
	}
}

// Cleanup removes the container. Only ever invoked on successful
// completion; internal errors are logged and swallowed, never returned.
func (b *DockerBackend) Cleanup(ctx context.Context, info ExecutionInfo) {
	timeout := int(stopTimeout.Seconds())
	_ = b.client.ContainerStop(ctx, info.ID, container.StopOptions{Timeout: &timeout})
	if err := b.client.ContainerRemove(ctx, info.ID, container.RemoveOptions{Force: true}); err != nil {
		if !dockerclient.IsErrNotFound(err) {
			slog.Error("docker cleanup failed", "container_id", info.ID, "name", info.Name, "error", err)
		}
	}
}
