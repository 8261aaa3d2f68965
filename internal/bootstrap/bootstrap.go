// Package bootstrap establishes the runtime working context inside a built
// artifact and launches the service as the container's foreground process.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/slipwaylabs/slipway/internal/fsys"
)

// Config is the explicit bootstrap configuration. The working directory is
// passed in rather than read from ambient process state so the sequence is
// testable against any filesystem.
type Config struct {
	WorkDir string
	Command []string
	Env     []string
}

// EnvironmentError means the expected working-directory root is missing.
// Fatal: the enclosing restart policy is the only recovery mechanism.
type EnvironmentError struct {
	WorkDir string
	Err     error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("working directory %s unavailable: %v", e.WorkDir, e.Err)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// LaunchError means the entry point could not be executed; the service
// process never existed.
type LaunchError struct {
	Command []string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %v: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Supervisor runs the bootstrap sequence: resolve the working directory,
// emit the diagnostic line, launch the service in the foreground.
type Supervisor struct {
	filesystem fsys.FileSystem
	launcher   Launcher
	logger     *log.Logger
	trace      func(event string)
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithLauncher injects the launcher
func WithLauncher(launcher Launcher) SupervisorOption {
	return func(s *Supervisor) {
		s.launcher = launcher
	}
}

// WithLogger injects the diagnostic logger
func WithLogger(logger *log.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithTrace installs a hook observing the sequence's ordered events; tests
// use it to assert the resolve-diagnose-launch ordering
func WithTrace(fn func(event string)) SupervisorOption {
	return func(s *Supervisor) {
		s.trace = fn
	}
}

func NewSupervisor(filesystem fsys.FileSystem, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		filesystem: filesystem,
		launcher:   NewPlatformLauncher(),
		logger:     log.New(os.Stderr),
		trace:      func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one bootstrap attempt. With a process-replacing launcher it
// does not return on success; otherwise the outcome carries the service's
// exit code untranslated.
func (s *Supervisor) Run(ctx context.Context, cfg Config) Outcome {
	lifecycle := NewLifecycle()

	if len(cfg.Command) == 0 {
		launchErr := &LaunchError{Err: fmt.Errorf("no command configured")}
		_ = lifecycle.Advance(StateBootstrapFailed)
		return Outcome{State: StateBootstrapFailed, Code: ExitLaunch, Err: launchErr}
	}

	info, err := s.filesystem.Stat(cfg.WorkDir)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("not a directory")
		}
		envErr := &EnvironmentError{WorkDir: cfg.WorkDir, Err: err}
		_ = lifecycle.Advance(StateBootstrapFailed)
		return Outcome{State: StateBootstrapFailed, Code: ExitEnvironment, Err: envErr}
	}
	s.trace("workdir-resolved")

	// The diagnostic line is part of the contract: it must come after the
	// working directory resolves and before the launch
	s.logger.Info("starting service", "workdir", cfg.WorkDir, "command", cfg.Command)
	s.trace("diagnostic-emitted")

	env := cfg.Env
	if env == nil {
		env = os.Environ()
	}

	s.trace("launch")
	code, err := s.launcher.Launch(ctx, cfg.WorkDir, cfg.Command, env)
	if err != nil {
		launchErr := &LaunchError{Command: cfg.Command, Err: err}
		_ = lifecycle.Advance(StateBootstrapFailed)
		return Outcome{State: StateBootstrapFailed, Code: ExitLaunch, Err: launchErr}
	}

	// Only a non-replacing launcher reaches this point
	_ = lifecycle.Advance(StateRunning)
	if code == 0 {
		_ = lifecycle.Advance(StateExited)
		return Outcome{State: StateExited, Code: 0}
	}
	_ = lifecycle.Advance(StateCrashed)
	return Outcome{State: StateCrashed, Code: code, Err: fmt.Errorf("service exited with code %d", code)}
}
