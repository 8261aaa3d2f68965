package bootstrap

import (
	"testing"
)

func TestLifecycle_HappyPath(t *testing.T) {
	lifecycle := NewLifecycle()

	if lifecycle.Current() != StateStarting {
		t.Fatalf("expected Starting, got %s", lifecycle.Current())
	}
	if err := lifecycle.Advance(StateRunning); err != nil {
		t.Fatalf("Starting -> Running must be allowed: %v", err)
	}
	if err := lifecycle.Advance(StateExited); err != nil {
		t.Fatalf("Running -> Exited must be allowed: %v", err)
	}
}

func TestLifecycle_CrashPath(t *testing.T) {
	lifecycle := NewLifecycle()

	if err := lifecycle.Advance(StateRunning); err != nil {
		t.Fatal(err)
	}
	if err := lifecycle.Advance(StateCrashed); err != nil {
		t.Fatalf("Running -> Crashed must be allowed: %v", err)
	}
}

func TestLifecycle_BootstrapFailedPath(t *testing.T) {
	lifecycle := NewLifecycle()

	if err := lifecycle.Advance(StateBootstrapFailed); err != nil {
		t.Fatalf("Starting -> BootstrapFailed must be allowed: %v", err)
	}
}

func TestLifecycle_DisallowedTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
	}{
		{"starting to exited", []State{StateExited}},
		{"starting to crashed", []State{StateCrashed}},
		{"running to bootstrap-failed", []State{StateRunning, StateBootstrapFailed}},
		{"no transitions out of exited", []State{StateRunning, StateExited, StateRunning}},
		{"no transitions out of crashed", []State{StateRunning, StateCrashed, StateRunning}},
		{"no transitions out of bootstrap-failed", []State{StateBootstrapFailed, StateRunning}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lifecycle := NewLifecycle()

			var err error
			for _, to := range tt.path {
				err = lifecycle.Advance(to)
			}
			if err == nil {
				t.Error("expected the final transition to be rejected")
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminals := map[State]bool{
		StateStarting:        false,
		StateRunning:         false,
		StateExited:          true,
		StateCrashed:         true,
		StateBootstrapFailed: true,
	}

	for state, want := range terminals {
		if got := IsTerminal(state); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", state, got, want)
		}
	}
}
