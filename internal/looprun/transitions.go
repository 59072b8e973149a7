package looprun

import (
	"fmt"

	"go.uber.org/zap"
)

// validTransitions defines the allowed state transitions.
// Key = from state, Value = set of allowed target states.
var validTransitions = map[State]map[State]bool{
	StateIdle: {
		StateStarting: true,
	},
	StateStarting: {
		StateRunning: true,
		StateFailed:  true, // lock/registry/event-log setup can fail before a single iteration runs
	},
	StateRunning: {
		StateCompleted: true,
		StateFailed:    true,
		StateAborted:   true,
		StateTimedOut:  true,
	},
	// Terminal states — no transitions out.
	StateCompleted: {},
	StateFailed:    {},
	StateAborted:   {},
	StateTimedOut:  {},
}

// transition moves the Driver to a new state, refusing (and logging) any
// move the table above doesn't allow instead of silently clobbering
// d.state. reason is recorded as d.lastReason and surfaces in the proof
// artifact and terminal reporter output.
func (d *Driver) transition(to State, reason string) error {
	from := d.state
	allowed, ok := validTransitions[from]
	if !ok || !allowed[to] {
		err := fmt.Errorf("invalid loop state transition: %s -> %s", from, to)
		d.logger.Error("loop state machine violation", zap.Error(err))
		return err
	}

	d.state = to
	d.lastReason = reason
	d.logger.Debug("loop state transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reason", reason),
	)
	return nil
}
