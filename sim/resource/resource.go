// Package resource provides finite-capacity servers that entities compete for.
package resource

import (
	"fmt"
	"sort"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/process"
	"github.com/sarchlab/procsim/sim/timing"
)

// Hook positions of a resource.
var (
	// HookPosAllocate triggers after units are granted. Item: *Allocation.
	HookPosAllocate = &hooking.HookPos{Name: "ResourceAllocate"}

	// HookPosDeallocate triggers after units are taken back.
	// Item: *Allocation.
	HookPosDeallocate = &hooking.HookPos{Name: "ResourceDeallocate"}

	// HookPosStateChange triggers when the state changes. Item: StateChange.
	HookPosStateChange = &hooking.HookPos{Name: "ResourceStateChange"}

	// HookPosUtilization samples the number of busy units whenever it
	// changes. Item: numBusy (int), Detail: utilization (float64).
	HookPosUtilization = &hooking.HookPos{Name: "ResourceUtilization"}

	// HookPosCapacityChange triggers when the capacity changes.
	// Item: new capacity (int), Detail: old capacity (int).
	HookPosCapacityChange = &hooking.HookPos{Name: "ResourceCapacityChange"}
)

// A Resource is a fixed-capacity server. Its capacity is reset to the initial
// capacity before every replication.
//
// Allocate does not check whether the entity should wait; callers check
// CanAllocate first. Entities normally go through ResourceWithQ.Seize instead.
type Resource struct {
	hooking.HookableBase

	name  string
	clock timing.TimeTeller

	initialCapacity int
	capacity        int
	numBusy         int

	state          State
	stateEnteredAt timing.VTimeInSec
	stateTime      [numStates]timing.VTimeInSec

	ledger    map[*process.Process][]*Allocation
	listeners []AllocationListener
	nextID    uint64

	numTimesSeized   int
	numTimesReleased int

	release func(a *Allocation)
}

func newResource(
	name string,
	clock timing.TimeTeller,
	capacity int,
) *Resource {
	if capacity < 0 {
		panic(fmt.Sprintf(
			"resource: capacity of %s must not be negative, got %d",
			name, capacity))
	}

	r := &Resource{
		name:            name,
		clock:           clock,
		initialCapacity: capacity,
		ledger:          make(map[*process.Process][]*Allocation),
	}
	r.release = r.Deallocate
	r.Reset()

	return r
}

// Name returns the name of the resource.
func (r *Resource) Name() string {
	return r.name
}

// Capacity returns the current number of units.
func (r *Resource) Capacity() int {
	return r.capacity
}

// InitialCapacity returns the capacity the resource starts every replication
// with.
func (r *Resource) InitialCapacity() int {
	return r.initialCapacity
}

// SetInitialCapacity changes the capacity used from the next replication on.
func (r *Resource) SetInitialCapacity(capacity int) {
	if capacity < 0 {
		panic(fmt.Sprintf(
			"resource: capacity of %s must not be negative, got %d",
			r.name, capacity))
	}

	r.initialCapacity = capacity
}

// NumBusy returns the number of allocated units.
func (r *Resource) NumBusy() int {
	return r.numBusy
}

// NumAvailableUnits returns the number of units that can be allocated now.
// It is never negative.
func (r *Resource) NumAvailableUnits() int {
	available := r.capacity - r.numBusy
	if available < 0 {
		return 0
	}

	return available
}

// HasAvailableUnits tells if at least one unit can be allocated.
func (r *Resource) HasAvailableUnits() bool {
	return r.NumAvailableUnits() > 0
}

// CanAllocate tells if amount units can be allocated now.
func (r *Resource) CanAllocate(amount int) bool {
	return amount >= 1 && amount <= r.NumAvailableUnits()
}

// Utilization returns the fraction of the capacity that is busy.
func (r *Resource) Utilization() float64 {
	if r.capacity == 0 {
		return 0
	}

	return float64(r.numBusy) / float64(r.capacity)
}

// State returns the state of the resource.
func (r *Resource) State() State {
	return r.state
}

// IsIdle tells if the resource has capacity and no busy unit.
func (r *Resource) IsIdle() bool {
	return r.state == StateIdle
}

// IsBusy tells if at least one unit is allocated.
func (r *Resource) IsBusy() bool {
	return r.state == StateBusy
}

// IsInactive tells if the resource has no capacity.
func (r *Resource) IsInactive() bool {
	return r.state == StateInactive
}

// TimeInState returns the total time spent in a state in this replication,
// including the time since the last state change.
func (r *Resource) TimeInState(s State) timing.VTimeInSec {
	t := r.stateTime[s]
	if s == r.state {
		t += r.clock.Now() - r.stateEnteredAt
	}

	return t
}

// NumTimesSeized returns the number of allocations made in this replication.
func (r *Resource) NumTimesSeized() int {
	return r.numTimesSeized
}

// NumTimesReleased returns the number of deallocations in this replication.
func (r *Resource) NumTimesReleased() int {
	return r.numTimesReleased
}

// AddAllocationListener registers a listener. Listeners are notified in
// registration order.
func (r *Resource) AddAllocationListener(l AllocationListener) {
	for _, registered := range r.listeners {
		if registered == l {
			panic("resource: duplicated allocation listener")
		}
	}

	r.listeners = append(r.listeners, l)
}

// RemoveAllocationListener unregisters a listener.
func (r *Resource) RemoveAllocationListener(l AllocationListener) {
	for i, registered := range r.listeners {
		if registered == l {
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Allocations returns the active allocations held by an entity.
func (r *Resource) Allocations(entity *process.Process) []*Allocation {
	return r.ledger[entity]
}

// NumAllocations returns the number of active allocations.
func (r *Resource) NumAllocations() int {
	n := 0
	for _, list := range r.ledger {
		n += len(list)
	}

	return n
}

// IsUsing tells if the entity holds units of the resource.
func (r *Resource) IsUsing(entity *process.Process) bool {
	return len(r.ledger[entity]) > 0
}

// Allocate grants amount units to the entity. The caller must make sure the
// units are available; allocating more than available is a contract
// violation. q is the request queue the entity waited in, if any.
func (r *Resource) Allocate(
	entity *process.Process,
	amount int,
	q *RequestQueue,
) *Allocation {
	if entity == nil {
		panic("resource: entity must not be nil")
	}

	if amount < 1 {
		panic(fmt.Sprintf(
			"resource: must allocate at least one unit of %s, got %d",
			r.name, amount))
	}

	if amount > r.NumAvailableUnits() {
		panic(fmt.Sprintf(
			"resource: cannot allocate %d units of %s, only %d available",
			amount, r.name, r.NumAvailableUnits()))
	}

	r.nextID++
	a := &Allocation{
		id:              r.nextID,
		entity:          entity,
		resource:        r,
		queue:           q,
		amount:          amount,
		timeAllocated:   r.clock.Now(),
		timeDeallocated: -1,
		allocated:       true,
	}

	r.ledger[entity] = append(r.ledger[entity], a)
	entity.AttachAllocation(a)
	r.numBusy += amount
	r.numTimesSeized++

	r.sampleUtilization()
	r.updateState()

	for _, l := range r.listeners {
		l.Allocated(a)
	}

	r.invoke(HookPosAllocate, a, nil)

	return a
}

// Deallocate takes the units of an allocation back. The allocation must be
// active and belong to this resource.
func (r *Resource) Deallocate(a *Allocation) {
	r.deallocate(a)
}

func (r *Resource) deallocate(a *Allocation) {
	r.mustOwnActiveAllocation(a)

	list := r.ledger[a.entity]
	for i, held := range list {
		if held == a {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}

	if len(list) == 0 {
		delete(r.ledger, a.entity)
	} else {
		r.ledger[a.entity] = list
	}

	a.entity.DetachAllocation(a)
	a.allocated = false
	a.timeDeallocated = r.clock.Now()
	r.numBusy -= a.amount
	r.numTimesReleased++

	r.sampleUtilization()
	r.updateState()

	for _, l := range r.listeners {
		l.Deallocated(a)
	}

	r.invoke(HookPosDeallocate, a, nil)
}

func (r *Resource) mustOwnActiveAllocation(a *Allocation) {
	if a == nil {
		panic("resource: allocation must not be nil")
	}

	if a.resource != r {
		panic(fmt.Sprintf(
			"resource: allocation belongs to %s, not %s",
			a.resource.name, r.name))
	}

	if !a.allocated {
		panic(fmt.Sprintf(
			"resource: allocation %d of %s has already been deallocated",
			a.id, r.name))
	}

	for _, held := range r.ledger[a.entity] {
		if held == a {
			return
		}
	}

	panic(fmt.Sprintf(
		"resource: allocation %d is not in the ledger of %s for %s",
		a.id, r.name, a.entity.Name()))
}

// ReleaseAll gives back every allocation the entity holds on this resource.
func (r *Resource) ReleaseAll(entity *process.Process) {
	held := append([]*Allocation(nil), r.ledger[entity]...)

	for _, a := range held {
		if a.allocated {
			r.release(a)
		}
	}
}

// Reset restores the initial capacity and clears the ledger.
func (r *Resource) Reset() {
	for entity, list := range r.ledger {
		for _, a := range list {
			a.allocated = false
			entity.DetachAllocation(a)
		}
	}

	r.ledger = make(map[*process.Process][]*Allocation)
	r.capacity = r.initialCapacity
	r.numBusy = 0
	r.numTimesSeized = 0
	r.numTimesReleased = 0
	r.stateTime = [numStates]timing.VTimeInSec{}
	r.stateEnteredAt = r.clock.Now()
	r.state = r.expectedState()
}

func (r *Resource) setCapacity(capacity int) {
	if capacity < 0 {
		panic(fmt.Sprintf(
			"resource: capacity of %s must not be negative, got %d",
			r.name, capacity))
	}

	if capacity == r.capacity {
		return
	}

	old := r.capacity
	r.capacity = capacity

	r.invoke(HookPosCapacityChange, capacity, old)
	r.sampleUtilization()
	r.updateState()
}

func (r *Resource) expectedState() State {
	switch {
	case r.capacity == 0:
		return StateInactive
	case r.numBusy > 0:
		return StateBusy
	default:
		return StateIdle
	}
}

func (r *Resource) updateState() {
	next := r.expectedState()
	if next == r.state {
		return
	}

	now := r.clock.Now()
	spent := now - r.stateEnteredAt
	r.stateTime[r.state] += spent

	change := StateChange{From: r.state, To: next, Duration: spent}
	r.state = next
	r.stateEnteredAt = now

	r.invoke(HookPosStateChange, change, nil)
}

func (r *Resource) sampleUtilization() {
	r.invoke(HookPosUtilization, r.numBusy, r.Utilization())
}

func (r *Resource) invoke(pos *hooking.HookPos, item, detail any) {
	if r.NumHooks() == 0 {
		return
	}

	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Now:    r.clock.Now(),
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}

// ActiveAllocations returns every active allocation, oldest first.
func (r *Resource) ActiveAllocations() []*Allocation {
	out := make([]*Allocation, 0, r.NumAllocations())
	for _, list := range r.ledger {
		out = append(out, list...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })

	return out
}
