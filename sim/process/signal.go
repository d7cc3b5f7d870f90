package process

import (
	"github.com/sarchlab/procsim/sim/hooking"
)

// HookPosSignal marks that a signal has been raised. The item is the number
// of processes woken.
var HookPosSignal = &hooking.HookPos{Name: "Signal"}

type waiter struct {
	process  *Process
	priority int
}

// A Signal holds processes until some actor raises it.
//
// Waiters are kept by priority, then by arrival. Raising the signal does not
// run the waiters immediately: each one gets a resumption event at the current
// time carrying its own priority.
type Signal struct {
	hooking.HookableBase

	name    string
	waiters []waiter
}

// NewSignal creates a signal.
func NewSignal(name string) *Signal {
	return &Signal{name: name}
}

// Name returns the name of the signal.
func (s *Signal) Name() string {
	return s.name
}

// NumWaiting returns the number of processes waiting for the signal.
func (s *Signal) NumWaiting() int {
	return len(s.waiters)
}

// IsWaiting tells if p waits for the signal.
func (s *Signal) IsWaiting(p *Process) bool {
	return indexOfWaiter(s.waiters, p) >= 0
}

// Signal wakes every waiting process, passing msg to each of them, and
// returns how many were woken.
func (s *Signal) Signal(msg any) int {
	return s.SignalN(len(s.waiters), msg)
}

// SignalFirst wakes the first waiting process, if any.
func (s *Signal) SignalFirst(msg any) bool {
	return s.SignalN(1, msg) == 1
}

// SignalN wakes up to n waiting processes in priority order.
func (s *Signal) SignalN(n int, msg any) int {
	if n > len(s.waiters) {
		n = len(s.waiters)
	}

	woken := s.waiters[:n:n]
	s.waiters = append([]waiter(nil), s.waiters[n:]...)

	for _, w := range woken {
		w.process.ResumeLater(w.priority, msg)
	}

	if n > 0 {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Now:    woken[0].process.Now(),
			Pos:    HookPosSignal,
			Item:   n,
			Detail: msg,
		})
	}

	return n
}

func (s *Signal) add(p *Process, priority int) {
	s.waiters = insertWaiter(s.waiters, waiter{process: p, priority: priority})
}

func (s *Signal) remove(p *Process) {
	s.waiters = removeWaiter(s.waiters, p)
}

type signalResumer struct {
	signal   *Signal
	priority int
}

func (r *signalResumer) Arm(p *Process) {
	r.signal.add(p, r.priority)
}

func (r *signalResumer) Disarm(p *Process) {
	r.signal.remove(p)
}

func insertWaiter(waiters []waiter, w waiter) []waiter {
	i := len(waiters)
	for i > 0 && waiters[i-1].priority > w.priority {
		i--
	}

	waiters = append(waiters, waiter{})
	copy(waiters[i+1:], waiters[i:])
	waiters[i] = w

	return waiters
}

func indexOfWaiter(waiters []waiter, p *Process) int {
	for i, w := range waiters {
		if w.process == p {
			return i
		}
	}

	return -1
}

func removeWaiter(waiters []waiter, p *Process) []waiter {
	i := indexOfWaiter(waiters, p)
	if i < 0 {
		return waiters
	}

	return append(waiters[:i:i], waiters[i+1:]...)
}
