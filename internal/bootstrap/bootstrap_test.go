package bootstrap

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/slipwaylabs/slipway/internal/fsys"
)

// fakeLauncher records launches and returns a scripted exit code or error
type fakeLauncher struct {
	launches [][]string
	workDirs []string
	code     int
	err      error
}

func (f *fakeLauncher) Launch(ctx context.Context, workDir string, command []string, env []string) (int, error) {
	f.launches = append(f.launches, command)
	f.workDirs = append(f.workDirs, workDir)
	if f.err != nil {
		return 0, f.err
	}
	return f.code, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func appFS() *fsys.MemoryFS {
	mfs := fsys.NewMemoryFS()
	mfs.AddDir("/app")
	mfs.AddFile("/app/main.py", []byte("code"))
	return mfs
}

func TestRun_EventOrdering(t *testing.T) {
	launcher := &fakeLauncher{}
	var events []string

	supervisor := NewSupervisor(appFS(),
		WithLauncher(launcher),
		WithLogger(quietLogger()),
		WithTrace(func(event string) { events = append(events, event) }))

	supervisor.Run(context.Background(), Config{
		WorkDir: "/app",
		Command: []string{"uvicorn", "app.main:app"},
		Env:     []string{},
	})

	expected := []string{"workdir-resolved", "diagnostic-emitted", "launch"}
	if len(events) != len(expected) {
		t.Fatalf("expected events %v, got %v", expected, events)
	}
	for i, event := range expected {
		if events[i] != event {
			t.Errorf("event %d: expected %q, got %q", i, event, events[i])
		}
	}
}

func TestRun_MissingWorkDir(t *testing.T) {
	launcher := &fakeLauncher{}
	supervisor := NewSupervisor(fsys.NewMemoryFS(),
		WithLauncher(launcher),
		WithLogger(quietLogger()))

	outcome := supervisor.Run(context.Background(), Config{
		WorkDir: "/app",
		Command: []string{"uvicorn"},
		Env:     []string{},
	})

	if outcome.State != StateBootstrapFailed {
		t.Errorf("expected BootstrapFailed, got %s", outcome.State)
	}
	if outcome.Code != ExitEnvironment {
		t.Errorf("expected exit code %d, got %d", ExitEnvironment, outcome.Code)
	}
	var envErr *EnvironmentError
	if !errors.As(outcome.Err, &envErr) {
		t.Errorf("expected EnvironmentError, got %v", outcome.Err)
	}
	if len(launcher.launches) != 0 {
		t.Error("launcher must never be invoked when the working directory is missing")
	}
}

func TestRun_WorkDirIsFile(t *testing.T) {
	mfs := fsys.NewMemoryFS()
	mfs.AddFile("/app", []byte("not a directory"))

	launcher := &fakeLauncher{}
	supervisor := NewSupervisor(mfs,
		WithLauncher(launcher),
		WithLogger(quietLogger()))

	outcome := supervisor.Run(context.Background(), Config{
		WorkDir: "/app",
		Command: []string{"uvicorn"},
		Env:     []string{},
	})

	if outcome.State != StateBootstrapFailed {
		t.Errorf("expected BootstrapFailed, got %s", outcome.State)
	}
	if len(launcher.launches) != 0 {
		t.Error("launcher must never be invoked when the working directory is a file")
	}
}

func TestRun_LaunchFailure(t *testing.T) {
	launcher := &fakeLauncher{err: errors.New("no such binary")}
	supervisor := NewSupervisor(appFS(),
		WithLauncher(launcher),
		WithLogger(quietLogger()))

	outcome := supervisor.Run(context.Background(), Config{
		WorkDir: "/app",
		Command: []string{"missing-binary"},
		Env:     []string{},
	})

	if outcome.State != StateBootstrapFailed {
		t.Errorf("expected BootstrapFailed, got %s", outcome.State)
	}
	if outcome.Code != ExitLaunch {
		t.Errorf("expected exit code %d, got %d", ExitLaunch, outcome.Code)
	}
	var launchErr *LaunchError
	if !errors.As(outcome.Err, &launchErr) {
		t.Errorf("expected LaunchError, got %v", outcome.Err)
	}
}

func TestRun_ExitCodePropagation(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		state State
	}{
		{"clean exit", 0, StateExited},
		{"crash code 1", 1, StateCrashed},
		{"crash code 137", 137, StateCrashed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher := &fakeLauncher{code: tt.code}
			supervisor := NewSupervisor(appFS(),
				WithLauncher(launcher),
				WithLogger(quietLogger()))

			outcome := supervisor.Run(context.Background(), Config{
				WorkDir: "/app",
				Command: []string{"service"},
				Env:     []string{},
			})

			if outcome.State != tt.state {
				t.Errorf("expected state %s, got %s", tt.state, outcome.State)
			}
			if outcome.Code != tt.code {
				t.Errorf("exit code must propagate verbatim: expected %d, got %d", tt.code, outcome.Code)
			}
		})
	}
}

func TestRun_LaunchReceivesWorkDir(t *testing.T) {
	launcher := &fakeLauncher{}
	supervisor := NewSupervisor(appFS(),
		WithLauncher(launcher),
		WithLogger(quietLogger()))

	supervisor.Run(context.Background(), Config{
		WorkDir: "/app",
		Command: []string{"service"},
		Env:     []string{},
	})

	if len(launcher.workDirs) != 1 || launcher.workDirs[0] != "/app" {
		t.Errorf("expected launcher to receive /app, got %v", launcher.workDirs)
	}
}

func TestRun_EmptyCommand(t *testing.T) {
	launcher := &fakeLauncher{}
	supervisor := NewSupervisor(appFS(),
		WithLauncher(launcher),
		WithLogger(quietLogger()))

	outcome := supervisor.Run(context.Background(), Config{WorkDir: "/app"})

	if outcome.State != StateBootstrapFailed {
		t.Errorf("expected BootstrapFailed, got %s", outcome.State)
	}
	if outcome.Code != ExitLaunch {
		t.Errorf("expected exit code %d, got %d", ExitLaunch, outcome.Code)
	}
	var launchErr *LaunchError
	if !errors.As(outcome.Err, &launchErr) {
		t.Errorf("expected LaunchError, got %v", outcome.Err)
	}
	if len(launcher.launches) != 0 {
		t.Error("launcher must not be invoked without a command")
	}
}
