package timing

import (
	"github.com/sarchlab/procsim/sim/hooking"
)

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTimeInSec
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	// Schedule creates an event that happens delay seconds from now.
	Schedule(delay VTimeInSec, priority int, action Action, msg any) *Event

	// ScheduleAt creates an event that happens at an absolute time.
	ScheduleAt(t VTimeInSec, priority int, action Action, msg any) *Event

	// Cancel marks an event as cancelled. It stays in the calendar and is
	// skipped when it reaches the front.
	Cancel(evt *Event)
}

// An Engine is a unit that keeps the discrete event simulation run.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run will process all the events until the simulation finishes
	Run() error

	// Stop ends the current run once the event being dispatched returns.
	Stop()

	// Pause will pause the simulation until continue is called.
	Pause()

	// Continue will continue the paused simulation
	Continue()
}

// EndReason tells why the executive stopped dispatching events.
type EndReason int

// The reasons a run can end.
const (
	NotEnded EndReason = iota
	EndReasonCalendarEmpty
	EndReasonStopped
	EndReasonEndOfReplication
	EndReasonWallClockExceeded
)

func (r EndReason) String() string {
	switch r {
	case NotEnded:
		return "NotEnded"
	case EndReasonCalendarEmpty:
		return "CalendarEmpty"
	case EndReasonStopped:
		return "Stopped"
	case EndReasonEndOfReplication:
		return "EndOfReplication"
	case EndReasonWallClockExceeded:
		return "WallClockExceeded"
	default:
		return "Unknown"
	}
}
