//go:build unix

package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// ExecLauncher replaces the current process image with the service via
// execve. No wrapper process survives: the service is the container's
// PID-1-equivalent, receives lifecycle signals directly, and its exit
// status is the container's exit status.
type ExecLauncher struct{}

func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{}
}

// Launch never returns on success. The chdir happens before exec so the
// service starts inside the artifact root.
func (e *ExecLauncher) Launch(ctx context.Context, workDir string, command []string, env []string) (int, error) {
	if len(command) == 0 {
		return 0, fmt.Errorf("empty command")
	}

	path, err := exec.LookPath(command[0])
	if err != nil {
		return 0, fmt.Errorf("entry point %q not found: %w", command[0], err)
	}

	if err := os.Chdir(workDir); err != nil {
		return 0, fmt.Errorf("failed to enter %s: %w", workDir, err)
	}

	if err := syscall.Exec(path, command, env); err != nil {
		return 0, fmt.Errorf("exec %q failed: %w", path, err)
	}

	// Unreachable: Exec does not return on success
	return 0, nil
}

// NewPlatformLauncher returns the process-replacing launcher
func NewPlatformLauncher() Launcher {
	return NewExecLauncher()
}
