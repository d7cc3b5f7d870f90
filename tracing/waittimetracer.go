package tracing

import (
	"sync"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/resource"
)

// WaitTimeTracer measures how long requests stay in a resource queue. Attach
// it to a resource.RequestQueue. Requests that are granted without waiting
// never enter the queue and are not counted.
type WaitTimeTracer struct {
	filter Filter

	lock  sync.Mutex
	waits Tally
}

// NewWaitTimeTracer creates a tracer. A nil filter traces every entity.
func NewWaitTimeTracer(filter Filter) *WaitTimeTracer {
	return &WaitTimeTracer{filter: filter}
}

// Func records the dequeued requests.
func (t *WaitTimeTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != resource.HookPosDequeue {
		return
	}

	req := ctx.Item.(*resource.Request)
	if t.filter != nil && !t.filter(req.Entity()) {
		return
	}

	t.lock.Lock()
	t.waits.Add(ctx.Now - req.EnqueueTime())
	t.lock.Unlock()
}

// Waits returns the collected wait times.
func (t *WaitTimeTracer) Waits() Tally {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.waits
}

// Reset drops what has been collected.
func (t *WaitTimeTracer) Reset() {
	t.lock.Lock()
	t.waits.Reset()
	t.lock.Unlock()
}
