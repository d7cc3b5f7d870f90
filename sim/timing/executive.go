package timing

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/id"
)

// An Executive is the time-advance loop of a simulation. It always runs events
// one after another, in the order defined by the calendar.
type Executive struct {
	hooking.HookableBase

	ids      id.Allocator
	calendar Calendar
	logger   logrus.FieldLogger

	timeLock sync.RWMutex
	now      VTimeInSec
	seq      uint64

	stopLock      sync.Mutex
	stopRequested bool
	endReason     EndReason
	endEvent      *Event

	maxWallClock  time.Duration
	wallStart     time.Time
	numDispatched uint64

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// Name returns the name of the executive.
func (e *Executive) Name() string {
	return "Executive"
}

// Now returns the current time at which the executive is at. Specifically,
// the time of the event being dispatched.
func (e *Executive) Now() VTimeInSec {
	return e.readNow()
}

func (e *Executive) readNow() VTimeInSec {
	e.timeLock.RLock()
	t := e.now
	e.timeLock.RUnlock()

	return t
}

func (e *Executive) writeNow(t VTimeInSec) {
	e.timeLock.Lock()
	e.now = t
	e.timeLock.Unlock()
}

// Calendar returns the calendar that holds the pending events.
func (e *Executive) Calendar() Calendar {
	return e.calendar
}

// NumDispatched returns the number of events dispatched since the last reset.
func (e *Executive) NumDispatched() uint64 {
	return e.numDispatched
}

// SetMaxWallClock limits how long a single Run may take in real time. Zero
// means no limit. The limit is checked between events only.
func (e *Executive) SetMaxWallClock(d time.Duration) {
	e.maxWallClock = d
}

// Schedule registers an event that happens delay seconds after now.
func (e *Executive) Schedule(
	delay VTimeInSec,
	priority int,
	action Action,
	msg any,
) *Event {
	if math.IsNaN(delay) || math.IsInf(delay, 0) {
		panic(fmt.Sprintf("timing: delay must be finite, got %v", delay))
	}

	if delay < 0 {
		panic(fmt.Sprintf("timing: delay must not be negative, got %v", delay))
	}

	return e.ScheduleAt(e.readNow()+delay, priority, action, msg)
}

// ScheduleAt registers an event that happens at an absolute time.
func (e *Executive) ScheduleAt(
	t VTimeInSec,
	priority int,
	action Action,
	msg any,
) *Event {
	now := e.readNow()
	if math.IsNaN(t) || math.IsInf(t, 0) {
		panic(fmt.Sprintf("timing: event time must be finite, got %v", t))
	}

	if t < now {
		panic(fmt.Sprintf(
			"timing: scheduling an event earlier than current time, "+
				"evt @ %.10f, now %.10f", t, now))
	}

	if action == nil {
		panic("timing: event action must not be nil")
	}

	e.seq++
	evt := &Event{
		id:       e.ids.Generate(),
		time:     t,
		priority: priority,
		seq:      e.seq,
		action:   action,
		message:  msg,
		index:    -1,
	}

	e.calendar.Add(evt)

	return evt
}

// Cancel marks the event as cancelled. Cancelling nil, an event that has
// already been dispatched, or an event that is already cancelled is a no-op.
func (e *Executive) Cancel(evt *Event) {
	if evt == nil || evt.cancelled {
		return
	}

	e.calendar.Cancel(evt)
}

// ScheduleEndOfReplication schedules the event that stops the run at time t.
// A previously scheduled end-of-replication event is cancelled.
func (e *Executive) ScheduleEndOfReplication(t VTimeInSec) *Event {
	e.Cancel(e.endEvent)

	e.endEvent = e.ScheduleAt(t, EndOfReplicationPriority,
		func(*Event) {
			e.stop(EndReasonEndOfReplication)
		}, nil)
	e.endEvent.SetName("EndOfReplication")

	return e.endEvent
}

// EndOfReplicationEvent returns the pending end-of-replication event, if any.
func (e *Executive) EndOfReplicationEvent() *Event {
	return e.endEvent
}

// Stop ends the run once the event being dispatched returns.
func (e *Executive) Stop() {
	e.stop(EndReasonStopped)
}

func (e *Executive) stop(reason EndReason) {
	e.stopLock.Lock()
	defer e.stopLock.Unlock()

	if e.stopRequested {
		return
	}

	e.stopRequested = true
	e.endReason = reason
}

func (e *Executive) isStopRequested() bool {
	e.stopLock.Lock()
	defer e.stopLock.Unlock()

	return e.stopRequested
}

// IsEnded tells if the last run has ended.
func (e *Executive) IsEnded() bool {
	e.stopLock.Lock()
	defer e.stopLock.Unlock()

	return e.endReason != NotEnded
}

// EndReason tells why the last run ended.
func (e *Executive) EndReason() EndReason {
	e.stopLock.Lock()
	defer e.stopLock.Unlock()

	return e.endReason
}

// Reset clears the calendar and rewinds the clock so that the executive can
// run another replication.
func (e *Executive) Reset() {
	e.calendar.Clear()
	e.writeNow(0)
	e.seq = 0
	e.numDispatched = 0
	e.endEvent = nil

	e.stopLock.Lock()
	e.stopRequested = false
	e.endReason = NotEnded
	e.stopLock.Unlock()
}

// Run processes all the events scheduled in the Executive until the calendar
// is empty, Stop is called, or the wall clock budget is exhausted.
func (e *Executive) Run() error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	e.wallStart = time.Now()

	for {
		if e.isStopRequested() {
			return nil
		}

		if e.calendar.Size() == 0 {
			e.stop(EndReasonCalendarEmpty)
			return nil
		}

		if e.wallClockExceeded() {
			e.logger.WithFields(logrus.Fields{
				"now":    e.readNow(),
				"budget": e.maxWallClock,
			}).Warn("execution time budget exceeded, ending the run")
			e.stop(EndReasonWallClockExceeded)

			return nil
		}

		e.pauseLock.Lock()
		e.dispatch(e.calendar.Next())
		e.pauseLock.Unlock()
	}
}

func (e *Executive) wallClockExceeded() bool {
	if e.maxWallClock <= 0 {
		return false
	}

	return time.Since(e.wallStart) > e.maxWallClock
}

func (e *Executive) dispatch(evt *Event) {
	if evt == nil || evt.cancelled {
		return
	}

	now := e.readNow()
	if evt.time < now {
		panic(fmt.Sprintf(
			"timing: cannot run event in the past, evt %s @ %.10f, now %.10f",
			evt.id, evt.time, now,
		))
	}

	e.writeNow(evt.time)
	e.numDispatched++

	hookCtx := hooking.HookCtx{
		Domain: e,
		Now:    evt.time,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	evt.action(evt)

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)
}

// Pause prevents the Executive to trigger more events.
func (e *Executive) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the Executive to trigger more events.
func (e *Executive) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}
