package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
)

// Launcher starts the service entry point. A replacing launcher never
// returns on success: the supervisor process becomes the service process.
// A non-replacing launcher returns the service's exact exit code.
type Launcher interface {
	// Launch runs the command in workDir with the given environment.
	// The returned code is meaningful only when err is nil.
	Launch(ctx context.Context, workDir string, command []string, env []string) (int, error)
}

// ChildLauncher runs the service as a child process, forwarding termination
// signals and returning the service's exit code verbatim. It backs the
// supervision loop on platforms without exec and in tests of restart
// behavior; in a container the replacing launcher is used instead so no
// wrapper process sits between the runtime and the service.
type ChildLauncher struct{}

func NewChildLauncher() *ChildLauncher {
	return &ChildLauncher{}
}

func (c *ChildLauncher) Launch(ctx context.Context, workDir string, command []string, env []string) (int, error) {
	if len(command) == 0 {
		return 0, fmt.Errorf("empty command")
	}

	path, err := exec.LookPath(command[0])
	if err != nil {
		return 0, fmt.Errorf("entry point %q not found: %w", command[0], err)
	}

	cmd := exec.Command(path, command[1:]...)
	cmd.Dir = workDir
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %q: %w", command[0], err)
	}

	// Forward termination signals without buffering so the service sees
	// them within the runtime's grace period
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(signals)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case sig := <-signals:
			_ = cmd.Process.Signal(sig)
		case <-ctx.Done():
			_ = cmd.Process.Signal(syscall.SIGTERM)
			waitErr := <-done
			return exitCodeOf(waitErr), nil
		case waitErr := <-done:
			return exitCodeOf(waitErr), nil
		}
	}
}

func exitCodeOf(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}
