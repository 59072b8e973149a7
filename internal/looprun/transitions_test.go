package looprun

import (
	"testing"

	"go.uber.org/zap"
)

func newTestDriverForTransitions() *Driver {
	return &Driver{logger: zap.NewNop(), state: StateIdle}
}

func TestTransitionAllowsTheDocumentedPath(t *testing.T) {
	d := newTestDriverForTransitions()

	steps := []State{StateStarting, StateRunning, StateCompleted}
	for _, to := range steps {
		if err := d.transition(to, "test"); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
	if d.State() != StateCompleted {
		t.Fatalf("expected StateCompleted, got %s", d.State())
	}
	if d.lastReason != "test" {
		t.Fatalf("expected lastReason to be set, got %q", d.lastReason)
	}
}

func TestTransitionRefusesSkippingStarting(t *testing.T) {
	d := newTestDriverForTransitions()

	if err := d.transition(StateRunning, "skip"); err == nil {
		t.Fatal("expected Idle->Running to be rejected")
	}
	if d.State() != StateIdle {
		t.Fatalf("rejected transition must not mutate state, got %s", d.State())
	}
}

func TestTransitionRefusesLeavingTerminalStates(t *testing.T) {
	d := newTestDriverForTransitions()
	d.state = StateCompleted

	if err := d.transition(StateRunning, "resurrect"); err == nil {
		t.Fatal("expected a terminal state to reject any further transition")
	}
	if d.State() != StateCompleted {
		t.Fatalf("rejected transition must not mutate state, got %s", d.State())
	}
}
