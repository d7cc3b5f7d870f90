package process

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/id"
	"github.com/sarchlab/procsim/sim/timing"
)

// Hook positions of the process lifecycle. The item of the hook context is
// the process.
var (
	HookPosActivated  = &hooking.HookPos{Name: "ProcessActivated"}
	HookPosSuspended  = &hooking.HookPos{Name: "ProcessSuspended"}
	HookPosResumed    = &hooking.HookPos{Name: "ProcessResumed"}
	HookPosCompleted  = &hooking.HookPos{Name: "ProcessCompleted"}
	HookPosTerminated = &hooking.HookPos{Name: "ProcessTerminated"}
)

// A Manager creates processes and drives their bodies on behalf of the
// executive. One simulation owns one Manager.
type Manager struct {
	hooking.HookableBase

	sched  timing.EventScheduler
	ids    id.Allocator
	logger logrus.FieldLogger

	live    []*Process
	running []*Process
}

// NewManager creates a Manager that schedules through sched and numbers its
// processes with ids.
func NewManager(
	sched timing.EventScheduler,
	ids id.Allocator,
	logger logrus.FieldLogger,
) *Manager {
	if ids == nil {
		ids = id.NewAllocator()
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Manager{
		sched:  sched,
		ids:    ids,
		logger: logger,
	}
}

// Name returns the name of the manager.
func (m *Manager) Name() string {
	return "ProcessManager"
}

// Scheduler returns the scheduler the processes use.
func (m *Manager) Scheduler() timing.EventScheduler {
	return m.sched
}

// NewProcess creates a process in the Created state. If name is empty, the
// process is named after its ID.
func (m *Manager) NewProcess(name string, body Body) *Process {
	if body == nil {
		panic("process: body must not be nil")
	}

	pid := m.ids.Next()
	if name == "" {
		name = fmt.Sprintf("Process-%d", pid)
	}

	p := &Process{
		id:         pid,
		name:       name,
		manager:    m,
		body:       body,
		state:      StateCreated,
		resumeCh:   make(chan resumeMsg),
		yieldCh:    make(chan yieldMsg),
		createTime: m.sched.Now(),
	}

	m.live = append(m.live, p)

	return p
}

// Start creates a process and activates it delay seconds from now.
func (m *Manager) Start(
	name string,
	delay timing.VTimeInSec,
	body Body,
) *Process {
	p := m.NewProcess(name, body)
	p.Activate(delay)

	return p
}

// Live returns the processes that have neither completed nor been terminated,
// in creation order.
func (m *Manager) Live() []*Process {
	out := make([]*Process, len(m.live))
	copy(out, m.live)

	return out
}

// NumLive returns the number of live processes.
func (m *Manager) NumLive() int {
	return len(m.live)
}

// Current returns the process whose body is executing, or nil if the event
// loop itself is executing.
func (m *Manager) Current() *Process {
	if len(m.running) == 0 {
		return nil
	}

	return m.running[len(m.running)-1]
}

// TerminateAll terminates every live process. It is used at the end of a
// replication so that no body is left blocked.
func (m *Manager) TerminateAll() {
	for len(m.live) > 0 {
		p := m.live[0]

		if p.state == StateRunning {
			panic(fmt.Sprintf(
				"process: cannot terminate running process %s", p.name))
		}

		p.Terminate()
	}
}

// Reset terminates every live process and rewinds the ID allocator.
func (m *Manager) Reset() {
	m.TerminateAll()
	m.ids.Reset()
}

func (m *Manager) start(p *Process) {
	p.state = StateRunning
	p.startTime = m.sched.Now()
	m.invoke(HookPosActivated, p, nil)

	m.push(p)
	go p.run()
	p.resumeCh <- resumeMsg{}
	m.awaitYield(p)
}

func (m *Manager) awaitYield(p *Process) {
	msg := <-p.yieldCh

	if msg.panicked {
		panic(msg.panicValue)
	}
}

func (m *Manager) push(p *Process) {
	m.running = append(m.running, p)
}

func (m *Manager) pop(p *Process) {
	n := len(m.running)
	if n == 0 || m.running[n-1] != p {
		panic(fmt.Sprintf(
			"process: %s is not the executing process", p.name))
	}

	m.running = m.running[:n-1]
}

func (m *Manager) mustBeCurrent(p *Process, op string) {
	if p.state != StateRunning || m.Current() != p {
		panic(fmt.Sprintf(
			"process: %s must be called from the body of %s (state %s)",
			op, p.name, p.state))
	}
}

func (m *Manager) retire(p *Process) {
	for i, l := range m.live {
		if l == p {
			m.live = append(m.live[:i:i], m.live[i+1:]...)
			return
		}
	}
}

func (m *Manager) invoke(pos *hooking.HookPos, p *Process, detail any) {
	if m.NumHooks() == 0 {
		return
	}

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Now:    m.sched.Now(),
		Pos:    pos,
		Item:   p,
		Detail: detail,
	})
}
