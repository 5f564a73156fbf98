package archivectx

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// DockerRunner hermetically isolates an archivectx build pipeline inside
// a container: the worker's scratch directory is bind-mounted in, and
// every pipeline step runs via exec instead of a direct host subprocess.
// Grounded on the same client.NewClientWithOpts/ContainerCreate/
// ContainerExecCreate sequence the teacher's service-discovery Docker
// client uses, repurposed here for build isolation rather than fault
// injection.
type DockerRunner struct {
	Image string

	cli         *client.Client
	containerID string
}

// NewDockerRunner builds a DockerRunner for the given image.
func NewDockerRunner(image string) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("archivectx: creating docker client: %w", err)
	}
	return &DockerRunner{Image: image, cli: cli}, nil
}

// Start creates and starts this worker's long-lived container, bind
// mounting hostWorkDir at the same path inside the container so relative
// paths resolved on the host remain valid in exec calls.
func (d *DockerRunner) Start(ctx context.Context, hostWorkDir string) error {
	cfg := &container.Config{
		Image:      d.Image,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: hostWorkDir,
	}
	hostCfg := &container.HostConfig{
		Binds: []string{hostWorkDir + ":" + hostWorkDir},
	}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, &specs.Platform{}, "")
	if err != nil {
		return fmt.Errorf("archivectx: creating container: %w", err)
	}
	d.containerID = resp.ID

	if err := d.cli.ContainerStart(ctx, d.containerID, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("archivectx: starting container: %w", err)
	}
	return nil
}

// Run execs each step in sequence inside the container, stopping at the
// first failing step.
func (d *DockerRunner) Run(ctx context.Context, workDir string, steps [][]string, env []string) error {
	for _, step := range steps {
		if _, err := d.exec(ctx, workDir, step, env); err != nil {
			return err
		}
	}
	return nil
}

// Output execs a single command inside the container and returns its
// combined stdout and stderr.
func (d *DockerRunner) Output(ctx context.Context, workDir string, cmd []string) ([]byte, error) {
	return d.exec(ctx, workDir, cmd, nil)
}

func (d *DockerRunner) exec(ctx context.Context, workDir string, cmd []string, env []string) ([]byte, error) {
	execConfig := types.ExecConfig{
		Cmd:          cmd,
		Env:          env,
		WorkingDir:   workDir,
		AttachStdout: true,
		AttachStderr: true,
	}

	execID, err := d.cli.ContainerExecCreate(ctx, d.containerID, execConfig)
	if err != nil {
		return nil, fmt.Errorf("archivectx: creating exec: %w", err)
	}

	resp, err := d.cli.ContainerExecAttach(ctx, execID.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, fmt.Errorf("archivectx: attaching exec: %w", err)
	}
	defer resp.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Reader); err != nil {
		return buf.Bytes(), fmt.Errorf("archivectx: reading exec output: %w", err)
	}

	inspect, err := d.cli.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return buf.Bytes(), fmt.Errorf("archivectx: inspecting exec: %w", err)
	}
	if inspect.ExitCode != 0 {
		return buf.Bytes(), fmt.Errorf("archivectx: command %v exited %d: %s", cmd, inspect.ExitCode, buf.String())
	}

	return buf.Bytes(), nil
}

// Close stops and removes the container, and closes the Docker client.
func (d *DockerRunner) Close(ctx context.Context) error {
	if d.containerID != "" {
		timeout := 5
		_ = d.cli.ContainerStop(ctx, d.containerID, container.StopOptions{Timeout: &timeout})
		_ = d.cli.ContainerRemove(ctx, d.containerID, types.ContainerRemoveOptions{Force: true})
	}
	return d.cli.Close()
}
