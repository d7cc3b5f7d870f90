package resource

import "fmt"

// State is the state of a resource.
type State int

// A resource is Inactive when it has no capacity, Busy when any unit is
// allocated, and Idle otherwise.
const (
	StateIdle State = iota
	StateBusy
	StateInactive
	numStates
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateBusy:
		return "Busy"
	case StateInactive:
		return "Inactive"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StateChange is the item of a HookPosStateChange hook.
type StateChange struct {
	From, To State
	Duration float64
}
