package engine

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// DockerEngine drives the docker CLI
type DockerEngine struct {
	binary      string
	execCommand ExecCommandFunc
}

// DockerOption configures a DockerEngine
type DockerOption func(*DockerEngine)

// WithExecCommand injects the command constructor, used by tests
func WithExecCommand(fn ExecCommandFunc) DockerOption {
	return func(d *DockerEngine) {
		d.execCommand = fn
	}
}

// WithBinary overrides the docker binary path
func WithBinary(path string) DockerOption {
	return func(d *DockerEngine) {
		d.binary = path
	}
}

func NewDockerEngine(opts ...DockerOption) *DockerEngine {
	d := &DockerEngine{
		binary:      "docker",
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DockerEngine) Name() string {
	return "docker"
}

func (d *DockerEngine) Available() bool {
	_, err := exec.LookPath(d.binary)
	return err == nil
}

// Build runs `docker build`. A non-zero exit fails the whole pipeline; the
// engine's own layer cache does the heavy lifting for unchanged layers.
func (d *DockerEngine) Build(ctx context.Context, opts BuildOptions) error {
	args := d.buildArgs(opts)

	cmd := d.execCommand(ctx, d.binary, args...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker build failed: %w", err)
	}
	return nil
}

// buildArgs constructs the docker build argument list deterministically
func (d *DockerEngine) buildArgs(opts BuildOptions) []string {
	args := []string{"build"}

	if opts.Tag != "" {
		args = append(args, "-t", opts.Tag)
	}
	if opts.Dockerfile != "" {
		dockerfile := opts.Dockerfile
		if !filepath.IsAbs(dockerfile) {
			dockerfile = filepath.Join(opts.ContextDir, dockerfile)
		}
		args = append(args, "-f", dockerfile)
	}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}

	keys := make([]string, 0, len(opts.BuildArgs))
	for key := range opts.BuildArgs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", key, opts.BuildArgs[key]))
	}

	return append(args, opts.ContextDir)
}

func (d *DockerEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	cmd := d.execCommand(ctx, d.binary, "image", "inspect", "--format", "{{.Id}}", image)
	var out strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, nil
		}
		return false, fmt.Errorf("docker image inspect failed: %w", err)
	}
	return strings.TrimSpace(out.String()) != "", nil
}
