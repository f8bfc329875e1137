package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"featureforge/internal/collab"
)

// dockerStopTimeout is the grace period when stopping a container.
const dockerStopTimeout = 10 * time.Second

// DefaultSandboxImage is the image used when none is configured.
const DefaultSandboxImage = "golang:1.25-alpine"

// DockerSandbox runs generated code inside a disposable container.
// Each Execute call stages the code on the host, bind-mounts it into a
// fresh container, waits for completion, and parses the logs.
type DockerSandbox struct {
	cli   *client.Client
	image string
}

// NewDockerSandbox connects to the Docker daemon from the environment.
func NewDockerSandbox(image string) (*DockerSandbox, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	if image == "" {
		image = DefaultSandboxImage
	}
	return &DockerSandbox{cli: cli, image: image}, nil
}

// Close releases the Docker client connection.
func (s *DockerSandbox) Close() error {
	if s.cli != nil {
		return s.cli.Close()
	}
	return nil
}

// Execute runs the staged tests in a throwaway container.
func (s *DockerSandbox) Execute(ctx context.Context, req collab.ExecutionRequest) (*collab.ExecutionResult, error) {
	dir, err := s.stage(req)
	if err != nil {
		return nil, &collab.ExecutionError{FeatureID: req.FeatureID, Err: err}
	}
	defer os.RemoveAll(dir)

	containerID, err := s.createContainer(ctx, dir)
	if err != nil {
		return nil, &collab.ExecutionError{FeatureID: req.FeatureID, Err: err}
	}
	defer s.stopAndRemove(containerID)

	if err := s.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, &collab.ExecutionError{FeatureID: req.FeatureID, Err: fmt.Errorf("failed to start container: %w", err)}
	}

	statusCh, errCh := s.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return nil, &collab.ExecutionError{FeatureID: req.FeatureID, Err: fmt.Errorf("container wait failed: %w", err)}
		}
	case <-statusCh:
	case <-ctx.Done():
		return nil, &collab.ExecutionError{FeatureID: req.FeatureID, Err: ctx.Err()}
	}

	output, err := s.collectLogs(ctx, containerID)
	if err != nil {
		return nil, &collab.ExecutionError{FeatureID: req.FeatureID, Err: err}
	}

	return ParseTestOutput(output), nil
}

func (s *DockerSandbox) createContainer(ctx context.Context, hostDir string) (string, error) {
	cfg := &container.Config{
		Image:      s.image,
		Cmd:        []string{"go", "test", "-cover", "./..."},
		WorkingDir: "/workspace",
	}
	hostCfg := &container.HostConfig{
		Binds:       []string{hostDir + ":/workspace"},
		NetworkMode: "none",
	}

	created, err := s.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	return created.ID, nil
}

func (s *DockerSandbox) collectLogs(ctx context.Context, containerID string) (string, error) {
	logs, err := s.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to read container logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return "", fmt.Errorf("failed to demultiplex container logs: %w", err)
	}
	return stdout.String() + stderr.String(), nil
}

// stopAndRemove tears the container down. Idempotent: a container that
// already exited or was removed is not an error.
func (s *DockerSandbox) stopAndRemove(containerID string) {
	if containerID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dockerStopTimeout*2)
	defer cancel()

	timeout := int(dockerStopTimeout.Seconds())
	_ = s.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout})

	err := s.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !client.IsErrNotFound(err) {
		// Removal failure leaves a stopped container behind; nothing
		// the caller can do about it mid-run.
		return
	}
}

func (s *DockerSandbox) stage(req collab.ExecutionRequest) (string, error) {
	return stageModule(req)
}
