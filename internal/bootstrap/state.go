package bootstrap

import (
	"fmt"
)

// State is a container instance's lifecycle phase
type State string

const (
	// StateStarting is the initial phase: environment not yet established
	StateStarting State = "starting"

	// StateRunning means the service process launched successfully
	StateRunning State = "running"

	// StateExited is terminal: the service exited zero
	StateExited State = "exited"

	// StateCrashed is terminal: the service launched but exited non-zero
	StateCrashed State = "crashed"

	// StateBootstrapFailed is terminal: a failure before the service
	// process existed. Distinct from StateCrashed so the restart layer
	// and operators can tell the two apart.
	StateBootstrapFailed State = "bootstrap-failed"
)

// IsTerminal reports whether the state is terminal
func IsTerminal(s State) bool {
	switch s {
	case StateExited, StateCrashed, StateBootstrapFailed:
		return true
	default:
		return false
	}
}

// Lifecycle tracks one container instance's state with validated
// transitions. Repeated Starting cycles are safe: the lifecycle owns no
// persistent resources, matching the immutable-artifact contract.
type Lifecycle struct {
	current State
}

// NewLifecycle returns a lifecycle in the Starting state
func NewLifecycle() *Lifecycle {
	return &Lifecycle{current: StateStarting}
}

// Current returns the present state
func (l *Lifecycle) Current() State {
	return l.current
}

// Advance performs a validated transition
func (l *Lifecycle) Advance(to State) error {
	if !isAllowedTransition(l.current, to) {
		return fmt.Errorf("disallowed lifecycle transition: %s -> %s", l.current, to)
	}
	l.current = to
	return nil
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateStarting:
		return to == StateRunning || to == StateBootstrapFailed
	case StateRunning:
		return to == StateExited || to == StateCrashed
	default:
		return false
	}
}

// Outcome is the terminal result of one bootstrap attempt
type Outcome struct {
	State State
	// Code is the process exit code for Exited/Crashed outcomes, or a
	// reserved bootstrap code for BootstrapFailed
	Code int
	// Stopped marks an operator-initiated stop, which restart policies
	// must never override
	Stopped bool
	// Err carries the failure detail for non-Exited outcomes
	Err error
}
