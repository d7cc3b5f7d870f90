package timing

import (
	"github.com/sarchlab/procsim/sim/hooking"
)

// VTimeInSec defines the time in the simulated space in the unit of second
type VTimeInSec = float64

// Well-known event priorities. A lower number means a higher precedence among
// events scheduled for the same time.
const (
	// WarmUpPriority orders the warm-up event ahead of ordinary events.
	WarmUpPriority = 5

	// DefaultPriority is used when a caller has no ordering preference.
	DefaultPriority = 10

	// EndOfReplicationPriority lets every other same-time event run before
	// the replication ends.
	EndOfReplicationPriority = 10000
)

// HookPosBeforeEvent is a hook position that triggers before handling an event.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

// An Action is what happens when an event is dispatched.
type Action func(evt *Event)

// An Event is something going to happen in the future.
//
// Events are created by the Executive, which stamps each one with a sequence
// number so that events sharing the same time and priority are dispatched in
// the order they were scheduled.
type Event struct {
	id        string
	name      string
	time      VTimeInSec
	priority  int
	seq       uint64
	action    Action
	message   any
	owner     any
	cancelled bool

	index int
}

// ID returns the unique identifier of the event.
func (e *Event) ID() string {
	return e.id
}

// Name returns a human readable label, which may be empty.
func (e *Event) Name() string {
	return e.name
}

// Time return the time that the event is going to happen
func (e *Event) Time() VTimeInSec {
	return e.time
}

// Priority returns the priority of the event. Lower goes first.
func (e *Event) Priority() int {
	return e.priority
}

// Seq returns the insertion sequence number of the event.
func (e *Event) Seq() uint64 {
	return e.seq
}

// Message returns the optional payload attached to the event.
func (e *Event) Message() any {
	return e.message
}

// Owner returns the process (or any other object) the event acts on behalf
// of. It is nil for events that do not belong to anyone.
func (e *Event) Owner() any {
	return e.owner
}

// SetOwner binds the event to an owner.
func (e *Event) SetOwner(owner any) {
	e.owner = owner
}

// SetName sets the label of the event.
func (e *Event) SetName(name string) {
	e.name = name
}

// IsCancelled tells if the event has been cancelled.
func (e *Event) IsCancelled() bool {
	return e.cancelled
}

// IsScheduled tells if the event is still waiting in a calendar.
func (e *Event) IsScheduled() bool {
	return e.index >= 0
}

// before defines the total order of events: time, then priority, then the
// order of scheduling.
func (e *Event) before(other *Event) bool {
	if e.time != other.time {
		return e.time < other.time
	}

	if e.priority != other.priority {
		return e.priority < other.priority
	}

	return e.seq < other.seq
}
