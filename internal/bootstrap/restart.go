package bootstrap

import (
	"context"
	"fmt"
)

// RestartPolicy decides whether a terminal outcome restarts the instance
// from Starting. In production the container runtime enforces this; the
// policy is modeled as an injected collaborator so the lifecycle can be
// exercised without a runtime.
type RestartPolicy interface {
	Name() string
	ShouldRestart(outcome Outcome) bool
}

type alwaysPolicy struct{}

func (alwaysPolicy) Name() string { return "always" }

func (alwaysPolicy) ShouldRestart(outcome Outcome) bool {
	return !outcome.Stopped
}

type unlessStoppedPolicy struct{}

func (unlessStoppedPolicy) Name() string { return "unless-stopped" }

func (unlessStoppedPolicy) ShouldRestart(outcome Outcome) bool {
	return !outcome.Stopped
}

type onFailurePolicy struct{}

func (onFailurePolicy) Name() string { return "on-failure" }

func (onFailurePolicy) ShouldRestart(outcome Outcome) bool {
	if outcome.Stopped {
		return false
	}
	return outcome.State == StateCrashed || outcome.State == StateBootstrapFailed
}

type neverPolicy struct{}

func (neverPolicy) Name() string { return "no" }

func (neverPolicy) ShouldRestart(Outcome) bool { return false }

// PolicyFromName maps the externally configured policy enum to an
// implementation. Names follow the container-runtime convention.
func PolicyFromName(name string) (RestartPolicy, error) {
	switch name {
	case "always":
		return alwaysPolicy{}, nil
	case "", "unless-stopped":
		return unlessStoppedPolicy{}, nil
	case "on-failure":
		return onFailurePolicy{}, nil
	case "no", "never":
		return neverPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown restart policy %q", name)
	}
}

// Supervise runs bootstrap attempts under a restart policy until the policy
// declines to restart or the context is canceled. With a process-replacing
// launcher a successful attempt never returns, so the loop only ever sees
// failures; with a child launcher this is a real supervision loop.
func Supervise(ctx context.Context, supervisor *Supervisor, cfg Config, policy RestartPolicy) Outcome {
	for {
		outcome := supervisor.Run(ctx, cfg)
		if ctx.Err() != nil {
			outcome.Stopped = true
		}
		if !policy.ShouldRestart(outcome) {
			return outcome
		}
	}
}
