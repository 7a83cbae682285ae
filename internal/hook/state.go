package hook

import (
	"errors"
	"fmt"
)

// State of one hook instance
type State string

const (
	StateCreated        State = "created"
	StateConfigured     State = "configured"
	StateOptionResolved State = "option_resolved"
	StateActive         State = "active"
	StateFinalized      State = "finalized"
)

// ErrFinalized is returned for any callback after exit.
var ErrFinalized = errors.New("hook instance already finalized")

// validTransitions maps from-state to allowed to-states. Callbacks never re-enter
// an earlier state. Exit may arrive without user_init in contexts that never run
// the job body (srun on the submit host, salloc).
var validTransitions = map[State]map[State]bool{
	StateCreated: {
		StateConfigured: true, // init
	},
	StateConfigured: {
		StateOptionResolved: true, // init_post_opt
		StateFinalized:      true, // exit (option parsing aborted)
	},
	StateOptionResolved: {
		StateActive:    true, // user_init
		StateFinalized: true, // exit outside the execution context
	},
	StateActive: {
		StateFinalized: true, // exit
	},
	StateFinalized: {},
}

// ValidateTransition checks if a state transition is valid
func ValidateTransition(from, to State) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminalState returns true if no further callbacks are accepted
func IsTerminalState(s State) bool {
	return s == StateFinalized
}
