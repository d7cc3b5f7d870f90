package process

import (
	"fmt"

	"github.com/sarchlab/procsim/sim/hooking"
)

// Hook positions of a hold queue. The item is the process.
var (
	HookPosHoldEnter = &hooking.HookPos{Name: "HoldEnter"}
	HookPosHoldExit  = &hooking.HookPos{Name: "HoldExit"}
)

// A HoldQueue keeps suspended processes until another actor takes them out.
// Nothing removes a process automatically.
type HoldQueue struct {
	hooking.HookableBase

	name    string
	waiters []waiter
}

// NewHoldQueue creates a hold queue.
func NewHoldQueue(name string) *HoldQueue {
	return &HoldQueue{name: name}
}

// Name returns the name of the queue.
func (q *HoldQueue) Name() string {
	return q.name
}

// Len returns the number of held processes.
func (q *HoldQueue) Len() int {
	return len(q.waiters)
}

// Contains tells if p is held in the queue.
func (q *HoldQueue) Contains(p *Process) bool {
	return indexOfWaiter(q.waiters, p) >= 0
}

// Peek returns the first held process, or nil.
func (q *HoldQueue) Peek() *Process {
	if len(q.waiters) == 0 {
		return nil
	}

	return q.waiters[0].process
}

// Processes returns the held processes in queue order.
func (q *HoldQueue) Processes() []*Process {
	out := make([]*Process, len(q.waiters))
	for i, w := range q.waiters {
		out[i] = w.process
	}

	return out
}

// Remove takes p out of the queue and schedules its resumption at the
// current time with the given priority.
func (q *HoldQueue) Remove(p *Process, priority int, msg any) {
	if !q.Contains(p) {
		panic(fmt.Sprintf("process: %s is not held in %s", p.name, q.name))
	}

	q.waiters = removeWaiter(q.waiters, p)
	q.notify(HookPosHoldExit, p)
	p.ResumeLater(priority, msg)
}

// RemoveFirst takes out the first held process and schedules its resumption.
// It returns nil when the queue is empty.
func (q *HoldQueue) RemoveFirst(priority int, msg any) *Process {
	p := q.Peek()
	if p == nil {
		return nil
	}

	q.Remove(p, priority, msg)

	return p
}

// RemoveAll releases every held process in queue order.
func (q *HoldQueue) RemoveAll(priority int, msg any) int {
	n := 0
	for q.Len() > 0 {
		q.RemoveFirst(priority, msg)
		n++
	}

	return n
}

func (q *HoldQueue) enter(p *Process, priority int) {
	q.waiters = insertWaiter(q.waiters, waiter{process: p, priority: priority})
	q.notify(HookPosHoldEnter, p)
}

func (q *HoldQueue) notify(pos *hooking.HookPos, p *Process) {
	if q.NumHooks() == 0 {
		return
	}

	q.InvokeHook(hooking.HookCtx{
		Domain: q,
		Now:    p.Now(),
		Pos:    pos,
		Item:   p,
	})
}

type holdResumer struct {
	queue    *HoldQueue
	priority int
}

func (r *holdResumer) Arm(p *Process) {
	r.queue.enter(p, r.priority)
}

func (r *holdResumer) Disarm(p *Process) {
	if r.queue.Contains(p) {
		r.queue.waiters = removeWaiter(r.queue.waiters, p)
		r.queue.notify(HookPosHoldExit, p)
	}
}
