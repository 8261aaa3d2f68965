// Package engine abstracts the container engine the builder shells out to.
package engine

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Engine is the container runtime the image builder drives. The build tool
// itself is opaque: slipway hands it a context and a Dockerfile and reads
// back an exit status.
type Engine interface {
	// Name returns the engine name, e.g. "docker"
	Name() string

	// Available checks whether the engine binary is on the system
	Available() bool

	// Build builds an image from a Dockerfile, streaming output through
	Build(ctx context.Context, opts BuildOptions) error

	// ImageExists checks whether an image tag is present locally
	ImageExists(ctx context.Context, image string) (bool, error)
}

// BuildOptions contains everything one image build needs
type BuildOptions struct {
	// ContextDir is the build context directory
	ContextDir string
	// Dockerfile is the path to the Dockerfile, absolute or relative to ContextDir
	Dockerfile string
	// Tag is the image tag
	Tag string
	// BuildArgs are build-time variables
	BuildArgs map[string]string
	// NoCache disables the engine's layer cache
	NoCache bool
	// Stdout and Stderr receive the engine's streamed output
	Stdout io.Writer
	Stderr io.Writer
}

// ExecCommandFunc creates the exec.Cmd an engine runs. Tests inject a fake
// to capture arguments and script exit codes.
type ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

// ErrEngineNotAvailable is returned when no usable container engine is found
type ErrEngineNotAvailable struct {
	Engine string
}

func (e *ErrEngineNotAvailable) Error() string {
	return fmt.Sprintf("container engine %q is not available on this system", e.Engine)
}
