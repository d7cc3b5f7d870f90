// Package process runs entity logic as suspendable sequential programs.
//
// Every process body runs on its own goroutine, but the goroutines hand a
// single baton to each other: whoever resumes a process blocks until that
// process suspends again or finishes. At any instant exactly one goroutine,
// either the event loop or one process body, is executing model code.
package process

import (
	"fmt"

	"github.com/sarchlab/procsim/sim/rvs"
	"github.com/sarchlab/procsim/sim/timing"
)

// State is the lifecycle state of a process.
type State int

// The lifecycle states of a process.
const (
	StateCreated State = iota
	StateRunning
	StateSuspended
	StateTerminated
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StateSuspended:
		return "Suspended"
	case StateTerminated:
		return "Terminated"
	case StateCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ActivationPriority is the priority of the event that starts a process.
const ActivationPriority = timing.DefaultPriority

// ResumePriority is the default priority of scheduled resumptions.
const ResumePriority = timing.DefaultPriority

// Body is the sequential logic of a process. It may block only through the
// suspension methods of the process it receives.
type Body func(p *Process)

// A Releasable is something a process holds that must be given back when the
// process is terminated, such as a resource allocation.
type Releasable interface {
	Release()
}

// A Resumer encapsulates what wakes a suspended process.
type Resumer interface {
	// Arm is called right after the process is marked as suspended. It
	// registers the process with its wake source. Arm must not resume the
	// process.
	Arm(p *Process)

	// Disarm is called when a suspended process is terminated. It removes
	// the process from its wake source.
	Disarm(p *Process)
}

type resumeMsg struct {
	value     any
	terminate bool
}

type yieldMsg struct {
	panicked   bool
	panicValue any
}

// terminationSignal unwinds a process body when the process is terminated.
type terminationSignal struct{}

// A Process is an entity's sequential logic.
type Process struct {
	id      uint64
	name    string
	manager *Manager
	body    Body
	data    any

	state   State
	resumer Resumer

	activation    *timing.Event
	pendingResume *timing.Event

	resumeCh chan resumeMsg
	yieldCh  chan yieldMsg

	allocations []Releasable

	createTime      timing.VTimeInSec
	startTime       timing.VTimeInSec
	endTime         timing.VTimeInSec
	numSuspensions  int
	lastSuspendTime timing.VTimeInSec
}

// ID returns the identity of the process.
func (p *Process) ID() uint64 {
	return p.id
}

// Name returns the name of the process.
func (p *Process) Name() string {
	return p.name
}

func (p *Process) String() string {
	return p.name
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	return p.state
}

// Data returns the model-specific payload attached to the process.
func (p *Process) Data() any {
	return p.data
}

// SetData attaches a model-specific payload to the process.
func (p *Process) SetData(data any) {
	p.data = data
}

// Manager returns the manager that owns the process.
func (p *Process) Manager() *Manager {
	return p.manager
}

// Now returns the current simulated time.
func (p *Process) Now() timing.VTimeInSec {
	return p.manager.sched.Now()
}

// CreateTime returns the time the process was created.
func (p *Process) CreateTime() timing.VTimeInSec {
	return p.createTime
}

// StartTime returns the time the body started to run.
func (p *Process) StartTime() timing.VTimeInSec {
	return p.startTime
}

// EndTime returns the time the process completed or was terminated.
func (p *Process) EndTime() timing.VTimeInSec {
	return p.endTime
}

// NumSuspensions returns how many times the process has suspended.
func (p *Process) NumSuspensions() int {
	return p.numSuspensions
}

// IsAlive tells if the process has not completed or been terminated.
func (p *Process) IsAlive() bool {
	return p.state != StateTerminated && p.state != StateCompleted
}

// IsSuspended tells if the process is waiting to be resumed.
func (p *Process) IsSuspended() bool {
	return p.state == StateSuspended
}

// Resumer returns what the process is currently waiting for, or nil.
func (p *Process) Resumer() Resumer {
	return p.resumer
}

// Activate schedules the process body to start delay seconds from now.
func (p *Process) Activate(delay timing.VTimeInSec) {
	p.ActivateWithPriority(delay, ActivationPriority)
}

// ActivateWithPriority schedules the process body to start delay seconds from
// now, with the given event priority.
func (p *Process) ActivateWithPriority(delay timing.VTimeInSec, priority int) {
	if p.state != StateCreated || p.activation != nil {
		panic(fmt.Sprintf(
			"process: cannot activate %s in state %s", p.name, p.state))
	}

	p.activation = p.manager.sched.Schedule(delay, priority,
		func(*timing.Event) {
			p.activation = nil
			p.manager.start(p)
		}, nil)
	p.activation.SetOwner(p)
	p.activation.SetName("Activate " + p.name)
}

// Suspend blocks the body until the resumer wakes the process, and returns the
// value passed by the wake source. It may only be called from the body of the
// process itself.
func (p *Process) Suspend(r Resumer) any {
	p.manager.mustBeCurrent(p, "suspend")

	if r == nil {
		panic("process: resumer must not be nil")
	}

	p.state = StateSuspended
	p.resumer = r
	p.numSuspensions++
	p.lastSuspendTime = p.Now()

	r.Arm(p)
	p.manager.invoke(HookPosSuspended, p, r)
	p.manager.pop(p)

	p.yieldCh <- yieldMsg{}
	msg := <-p.resumeCh

	if msg.terminate {
		panic(terminationSignal{})
	}

	return msg.value
}

// Resume wakes a suspended process immediately. The caller blocks until the
// process suspends again or finishes. Resuming a process that is not suspended
// is a contract violation.
func (p *Process) Resume(value any) {
	if p.state != StateSuspended {
		panic(fmt.Sprintf(
			"process: cannot resume %s in state %s", p.name, p.state))
	}

	if p.pendingResume != nil {
		panic(fmt.Sprintf(
			"process: %s already has a pending resumption", p.name))
	}

	p.resumer = nil
	p.state = StateRunning
	p.manager.invoke(HookPosResumed, p, value)

	p.manager.push(p)
	p.resumeCh <- resumeMsg{value: value}
	p.manager.awaitYield(p)
}

// ResumeLater schedules the resumption of a suspended process at the current
// time with the given priority. The process stays suspended until the event is
// dispatched. A process can only have one pending resumption.
func (p *Process) ResumeLater(priority int, value any) *timing.Event {
	if p.state != StateSuspended {
		panic(fmt.Sprintf(
			"process: cannot resume %s in state %s", p.name, p.state))
	}

	if p.pendingResume != nil {
		panic(fmt.Sprintf(
			"process: %s already has a pending resumption", p.name))
	}

	evt := p.manager.sched.Schedule(0, priority, func(evt *timing.Event) {
		if p.pendingResume != evt {
			return
		}

		p.pendingResume = nil
		p.Resume(evt.Message())
	}, value)
	evt.SetOwner(p)
	evt.SetName("Resume " + p.name)
	p.pendingResume = evt

	return evt
}

// HasPendingResume tells if a resumption has been scheduled but not yet
// dispatched.
func (p *Process) HasPendingResume() bool {
	return p.pendingResume != nil
}

// Delay suspends the process for duration seconds. The process is resumed by
// a scheduled event.
func (p *Process) Delay(duration timing.VTimeInSec, priority int) {
	p.Suspend(&delayResumer{duration: duration, priority: priority})
}

// DelayFor suspends the process for a duration drawn from a generator.
func (p *Process) DelayFor(g rvs.Generator, priority int) {
	p.Delay(g.Value(), priority)
}

// WaitFor suspends the process until the signal is raised.
func (p *Process) WaitFor(s *Signal, priority int) any {
	return p.Suspend(&signalResumer{signal: s, priority: priority})
}

// HoldIn suspends the process in a hold queue until another actor removes it.
func (p *Process) HoldIn(q *HoldQueue, priority int) any {
	return p.Suspend(&holdResumer{queue: q, priority: priority})
}

// Terminate stops the process. A suspended process is unwound from its
// suspension point; the body may terminate itself, in which case Terminate does
// not return. Every allocation the process still holds is released before
// Terminate returns.
func (p *Process) Terminate() {
	switch p.state {
	case StateCreated:
		p.manager.sched.Cancel(p.activation)
		p.activation = nil
		p.state = StateTerminated
		p.endTime = p.Now()
		p.manager.retire(p)
		p.manager.invoke(HookPosTerminated, p, nil)
	case StateSuspended:
		if p.resumer != nil {
			p.resumer.Disarm(p)
		}

		p.manager.sched.Cancel(p.pendingResume)
		p.pendingResume = nil
		p.resumer = nil
		p.state = StateRunning

		p.manager.push(p)
		p.resumeCh <- resumeMsg{terminate: true}
		p.manager.awaitYield(p)
	case StateRunning:
		p.manager.mustBeCurrent(p, "terminate")
		panic(terminationSignal{})
	default:
		panic(fmt.Sprintf(
			"process: cannot terminate %s in state %s", p.name, p.state))
	}
}

// AttachAllocation records something the process now holds.
func (p *Process) AttachAllocation(r Releasable) {
	p.allocations = append(p.allocations, r)
}

// DetachAllocation forgets something the process held.
func (p *Process) DetachAllocation(r Releasable) {
	for i, a := range p.allocations {
		if a == r {
			p.allocations = append(p.allocations[:i:i], p.allocations[i+1:]...)
			return
		}
	}
}

// Allocations returns what the process currently holds.
func (p *Process) Allocations() []Releasable {
	return p.allocations
}

// HasAllocations tells if the process holds anything.
func (p *Process) HasAllocations() bool {
	return len(p.allocations) > 0
}

func (p *Process) releaseAll() {
	held := make([]Releasable, len(p.allocations))
	copy(held, p.allocations)

	for _, r := range held {
		r.Release()
	}

	p.allocations = nil
}

func (p *Process) run() {
	defer func() {
		r := recover()

		switch r.(type) {
		case nil:
			p.finish(StateCompleted)
			p.manager.pop(p)
			p.yieldCh <- yieldMsg{}
		case terminationSignal:
			p.finish(StateTerminated)
			p.manager.pop(p)
			p.yieldCh <- yieldMsg{}
		default:
			p.releaseAll()
			p.state = StateTerminated
			p.endTime = p.Now()
			p.manager.retire(p)
			p.manager.pop(p)
			p.yieldCh <- yieldMsg{panicked: true, panicValue: r}
		}
	}()

	<-p.resumeCh
	p.body(p)
}

func (p *Process) finish(state State) {
	if len(p.allocations) > 0 {
		if state == StateCompleted {
			p.manager.logger.
				WithField("process", p.name).
				WithField("allocations", len(p.allocations)).
				Warn("process completed while holding allocations, releasing them")
		}

		p.releaseAll()
	}

	p.state = state
	p.endTime = p.Now()
	p.manager.retire(p)

	pos := HookPosCompleted
	if state == StateTerminated {
		pos = HookPosTerminated
	}

	p.manager.invoke(pos, p, nil)
}
