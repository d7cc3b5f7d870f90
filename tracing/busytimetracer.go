package tracing

import (
	"sync"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/resource"
	"github.com/sarchlab/procsim/sim/timing"
)

// BusyTimeTracer integrates the number of busy units of a resource over time.
// Attach it to a resource.
type BusyTimeTracer struct {
	lock     sync.Mutex
	since    timing.VTimeInSec
	lastTime timing.VTimeInSec
	lastBusy int
	unitTime float64
}

// NewBusyTimeTracer creates a tracer that starts integrating at time 0.
func NewBusyTimeTracer() *BusyTimeTracer {
	return &BusyTimeTracer{}
}

// Func records a utilization sample.
func (t *BusyTimeTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != resource.HookPosUtilization {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.advance(ctx.Now)
	t.lastBusy = ctx.Item.(int)
}

func (t *BusyTimeTracer) advance(now timing.VTimeInSec) {
	if now > t.lastTime {
		t.unitTime += float64(t.lastBusy) * (now - t.lastTime)
		t.lastTime = now
	}
}

// BusyUnitTime returns the integral of the busy units up to now.
func (t *BusyTimeTracer) BusyUnitTime(now timing.VTimeInSec) float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.advance(now)

	return t.unitTime
}

// MeanBusy returns the time-average number of busy units since the last reset.
func (t *BusyTimeTracer) MeanBusy(now timing.VTimeInSec) float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.advance(now)

	if now <= t.since {
		return float64(t.lastBusy)
	}

	return t.unitTime / (now - t.since)
}

// Reset restarts the integration at now with the given number of busy units.
func (t *BusyTimeTracer) Reset(now timing.VTimeInSec, busy int) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.since = now
	t.lastTime = now
	t.lastBusy = busy
	t.unitTime = 0
}
