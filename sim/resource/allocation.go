package resource

import (
	"github.com/sarchlab/procsim/sim/process"
	"github.com/sarchlab/procsim/sim/timing"
)

// An Allocation records a grant of resource units to an entity.
type Allocation struct {
	id       uint64
	entity   *process.Process
	resource *Resource
	queue    *RequestQueue
	amount   int

	timeAllocated   timing.VTimeInSec
	timeDeallocated timing.VTimeInSec
	allocated       bool
}

// ID returns the identifier of the allocation, unique within its resource.
func (a *Allocation) ID() uint64 {
	return a.id
}

// Entity returns the process that holds the units.
func (a *Allocation) Entity() *process.Process {
	return a.entity
}

// Resource returns the resource the units belong to.
func (a *Allocation) Resource() *Resource {
	return a.resource
}

// Queue returns the request queue the entity waited in, or nil if the units
// were granted without waiting.
func (a *Allocation) Queue() *RequestQueue {
	return a.queue
}

// Amount returns the number of units granted.
func (a *Allocation) Amount() int {
	return a.amount
}

// TimeAllocated returns when the units were granted.
func (a *Allocation) TimeAllocated() timing.VTimeInSec {
	return a.timeAllocated
}

// TimeDeallocated returns when the units were given back, or -1 while they
// are still held.
func (a *Allocation) TimeDeallocated() timing.VTimeInSec {
	return a.timeDeallocated
}

// IsAllocated tells if the units are still held.
func (a *Allocation) IsAllocated() bool {
	return a.allocated
}

// IsDeallocated tells if the units have been given back.
func (a *Allocation) IsDeallocated() bool {
	return !a.allocated
}

// Release gives the units back to the resource. Waiting requests are
// re-evaluated if the resource has a queue.
func (a *Allocation) Release() {
	a.resource.release(a)
}

// An AllocationListener is notified synchronously whenever a resource grants
// or takes back units.
type AllocationListener interface {
	Allocated(a *Allocation)
	Deallocated(a *Allocation)
}
