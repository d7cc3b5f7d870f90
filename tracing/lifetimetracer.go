package tracing

import (
	"sync"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/process"
)

// LifetimeTracer measures how long processes live, from their activation to
// their completion. Attach it to a process.Manager. Terminated processes are
// only counted.
type LifetimeTracer struct {
	filter Filter

	lock         sync.Mutex
	lifetimes    Tally
	numStarted   uint64
	numTerminate uint64
}

// NewLifetimeTracer creates a tracer. A nil filter traces every process.
func NewLifetimeTracer(filter Filter) *LifetimeTracer {
	return &LifetimeTracer{filter: filter}
}

// Func records the process events.
func (t *LifetimeTracer) Func(ctx hooking.HookCtx) {
	p, ok := ctx.Item.(*process.Process)
	if !ok || (t.filter != nil && !t.filter(p)) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	switch ctx.Pos {
	case process.HookPosActivated:
		t.numStarted++
	case process.HookPosCompleted:
		t.lifetimes.Add(p.EndTime() - p.StartTime())
	case process.HookPosTerminated:
		t.numTerminate++
	}
}

// Lifetimes returns the lifetimes of the completed processes.
func (t *LifetimeTracer) Lifetimes() Tally {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.lifetimes
}

// NumStarted returns the number of traced processes that were activated.
func (t *LifetimeTracer) NumStarted() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.numStarted
}

// NumTerminated returns the number of traced processes that were terminated.
func (t *LifetimeTracer) NumTerminated() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.numTerminate
}

// Reset drops what has been collected.
func (t *LifetimeTracer) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.lifetimes.Reset()
	t.numStarted = 0
	t.numTerminate = 0
}
