package resource

import (
	"fmt"
	"math"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/timing"
)

// A CapacityChangeRule decides when the duration of a capacity reduction
// starts to count.
type CapacityChangeRule int

const (
	// RuleIgnore starts the duration when the notice arrives, whether or not
	// busy units have been withdrawn yet.
	RuleIgnore CapacityChangeRule = iota

	// RuleWait starts the duration once all the units of the reduction have
	// been withdrawn.
	RuleWait
)

func (r CapacityChangeRule) String() string {
	switch r {
	case RuleIgnore:
		return "IGNORE"
	case RuleWait:
		return "WAIT"
	default:
		return fmt.Sprintf("CapacityChangeRule(%d)", int(r))
	}
}

// ParseCapacityChangeRule converts "IGNORE" or "WAIT" into a rule.
func ParseCapacityChangeRule(s string) (CapacityChangeRule, error) {
	switch s {
	case "IGNORE", "ignore":
		return RuleIgnore, nil
	case "WAIT", "wait":
		return RuleWait, nil
	default:
		return RuleIgnore, fmt.Errorf("resource: unknown capacity change rule %q", s)
	}
}

// Hook positions of capacity change notices.
var (
	// HookPosNoticeArrived triggers when a notice is received.
	// Item: *CapacityChangeNotice.
	HookPosNoticeArrived = &hooking.HookPos{Name: "CapacityNoticeArrived"}

	// HookPosNoticeFulfilled triggers when all the units a notice withdraws
	// have been withdrawn. Item: *CapacityChangeNotice.
	HookPosNoticeFulfilled = &hooking.HookPos{Name: "CapacityNoticeFulfilled"}

	// HookPosNoticeExpired triggers when the duration of a notice ends.
	// Item: *CapacityChangeNotice.
	HookPosNoticeExpired = &hooking.HookPos{Name: "CapacityNoticeExpired"}
)

// A CapacityChangeNotice asks a resource to move to a new capacity for a
// duration. An infinite duration never expires.
type CapacityChangeNotice struct {
	capacity int
	duration timing.VTimeInSec
	priority int

	arrivalTime  timing.VTimeInSec
	startTime    timing.VTimeInSec
	endTime      timing.VTimeInSec
	amountNeeded int

	expiry    *timing.Event
	applied   bool
	fulfilled bool
	expired   bool
}

// NewCapacityChangeNotice creates a notice. The priority is used by the
// expiry event.
func NewCapacityChangeNotice(
	capacity int,
	duration timing.VTimeInSec,
	priority int,
) *CapacityChangeNotice {
	if capacity < 0 {
		panic(fmt.Sprintf(
			"resource: notice capacity must not be negative, got %d", capacity))
	}

	if math.IsNaN(duration) || duration < 0 {
		panic(fmt.Sprintf(
			"resource: notice duration must not be negative, got %v", duration))
	}

	return &CapacityChangeNotice{
		capacity:    capacity,
		duration:    duration,
		priority:    priority,
		arrivalTime: -1,
		startTime:   -1,
		endTime:     -1,
	}
}

// Capacity returns the target capacity.
func (n *CapacityChangeNotice) Capacity() int {
	return n.capacity
}

// Duration returns how long the change lasts.
func (n *CapacityChangeNotice) Duration() timing.VTimeInSec {
	return n.duration
}

// Priority returns the priority of the expiry event.
func (n *CapacityChangeNotice) Priority() int {
	return n.priority
}

// ArrivalTime returns when the resource received the notice.
func (n *CapacityChangeNotice) ArrivalTime() timing.VTimeInSec {
	return n.arrivalTime
}

// StartTime returns when the notice started changing the capacity, or -1 if
// it is still queued.
func (n *CapacityChangeNotice) StartTime() timing.VTimeInSec {
	return n.startTime
}

// EndTime returns when the notice expires, or -1 if that is not known yet.
func (n *CapacityChangeNotice) EndTime() timing.VTimeInSec {
	return n.endTime
}

// AmountNeeded returns the number of busy units the notice still has to
// withdraw.
func (n *CapacityChangeNotice) AmountNeeded() int {
	return n.amountNeeded
}

// IsFulfilled tells if every unit of the change has been withdrawn.
func (n *CapacityChangeNotice) IsFulfilled() bool {
	return n.fulfilled
}

// IsExpired tells if the duration of the notice has ended.
func (n *CapacityChangeNotice) IsExpired() bool {
	return n.expired
}

func (n *CapacityChangeNotice) String() string {
	return fmt.Sprintf("capacity %d for %v", n.capacity, n.duration)
}
