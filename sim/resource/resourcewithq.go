package resource

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/process"
	"github.com/sarchlab/procsim/sim/timing"
)

// A ResourceWithQ is a resource whose entities wait in a request queue when
// not enough units are available. Its capacity can be changed while entities
// are using it.
//
// A capacity reduction first takes idle units. Busy units are withdrawn as
// they are released, before any waiting request can use them. Notices that
// arrive while a reduction is still withdrawing units are queued and applied
// one at a time, in arrival order.
type ResourceWithQ struct {
	*Resource

	sched    timing.EventScheduler
	logger   logrus.FieldLogger
	queue    *RequestQueue
	selector RequestSelector
	rule     CapacityChangeRule

	current *CapacityChangeNotice
	queued  []*CapacityChangeNotice
	timers  []*CapacityChangeNotice
}

type grant struct {
	request    *Request
	allocation *Allocation
}

// Queue returns the request queue of the resource.
func (r *ResourceWithQ) Queue() *RequestQueue {
	return r.queue
}

// NumWaiting returns the number of requests in the queue.
func (r *ResourceWithQ) NumWaiting() int {
	return r.queue.Len()
}

// Rule returns the capacity change rule.
func (r *ResourceWithQ) Rule() CapacityChangeRule {
	return r.rule
}

// SetRule changes the capacity change rule. It cannot be changed while a
// notice is pending.
func (r *ResourceWithQ) SetRule(rule CapacityChangeRule) {
	if r.current != nil || len(r.queued) > 0 {
		panic(fmt.Sprintf(
			"resource: cannot change the rule of %s with a pending notice",
			r.name))
	}

	r.rule = rule
}

// Selector returns the request selector.
func (r *ResourceWithQ) Selector() RequestSelector {
	return r.selector
}

// Seize requests amount units for the process p, which must be the running
// process. If the units are available they are allocated at once. Otherwise
// p waits in the request queue and Seize returns once the units have been
// allocated to it.
func (r *ResourceWithQ) Seize(
	p *process.Process,
	amount int,
	priority int,
) *Allocation {
	if p == nil || p.State() != process.StateRunning {
		panic(fmt.Sprintf("resource: %s can only be seized by the running "+
			"process", r.name))
	}

	if amount < 1 {
		panic(fmt.Sprintf(
			"resource: must seize at least one unit of %s, got %d",
			r.name, amount))
	}

	if r.CanAllocate(amount) {
		return r.Allocate(p, amount, nil)
	}

	req := &Request{entity: p, amount: amount, priority: priority}
	req.resumer = &seizeResumer{queue: r.queue, request: req}

	return p.Suspend(req.resumer).(*Allocation)
}

// Deallocate takes the units of an allocation back, withdraws the units a
// pending capacity reduction still needs, and fills the waiting requests that
// now fit.
func (r *ResourceWithQ) Deallocate(a *Allocation) {
	released := a.amount
	r.Resource.deallocate(a)

	if r.current != nil {
		r.withdraw(released)
	}

	r.fillRequests()
}

// PendingNotice returns the reduction that is still withdrawing busy units, or
// nil.
func (r *ResourceWithQ) PendingNotice() *CapacityChangeNotice {
	return r.current
}

// QueuedNotices returns the notices waiting behind the pending one.
func (r *ResourceWithQ) QueuedNotices() []*CapacityChangeNotice {
	return r.queued
}

// ChangeCapacity delivers a capacity change notice to the resource.
func (r *ResourceWithQ) ChangeCapacity(n *CapacityChangeNotice) {
	if n == nil {
		panic("resource: notice must not be nil")
	}

	if n.arrivalTime >= 0 {
		panic(fmt.Sprintf("resource: notice %s delivered twice", n))
	}

	now := r.sched.Now()
	pending := r.current != nil || len(r.queued) > 0

	if r.rule == RuleIgnore && pending {
		last := r.current
		if len(r.queued) > 0 {
			last = r.queued[len(r.queued)-1]
		}

		lastEnd := last.endTime
		if math.IsInf(last.duration, 1) {
			lastEnd = math.Inf(1)
		}

		if now+n.duration <= lastEnd {
			panic(fmt.Sprintf(
				"resource: notice %s on %s ends at %v, "+
					"not after the pending notice ending at %v",
				n, r.name, now+n.duration, lastEnd))
		}
	}

	n.arrivalTime = now
	r.invokeNotice(HookPosNoticeArrived, n)

	if r.rule == RuleIgnore {
		r.scheduleExpiry(n)
	}

	if pending {
		r.queued = append(r.queued, n)
		r.logger.
			WithField("resource", r.name).
			WithField("capacity", n.capacity).
			Debug("capacity change queued behind pending notice")

		return
	}

	r.apply(n)
}

func (r *ResourceWithQ) apply(n *CapacityChangeNotice) {
	n.applied = true
	n.startTime = r.sched.Now()

	if n.capacity >= r.capacity {
		r.setCapacity(n.capacity)
		r.fulfill(n)
		r.fillRequests()

		return
	}

	decrease := r.capacity - n.capacity
	taken := decrease
	if idle := r.NumAvailableUnits(); idle < taken {
		taken = idle
	}

	r.setCapacity(r.capacity - taken)
	n.amountNeeded = decrease - taken

	if n.amountNeeded == 0 {
		r.fulfill(n)
		return
	}

	r.current = n
}

func (r *ResourceWithQ) withdraw(released int) {
	n := r.current

	taken := released
	if n.amountNeeded < taken {
		taken = n.amountNeeded
	}

	n.amountNeeded -= taken
	r.setCapacity(r.capacity - taken)

	if n.amountNeeded == 0 {
		r.current = nil
		r.fulfill(n)
	}
}

func (r *ResourceWithQ) fulfill(n *CapacityChangeNotice) {
	n.fulfilled = true
	r.invokeNotice(HookPosNoticeFulfilled, n)

	if r.rule == RuleWait {
		r.scheduleExpiry(n)
	}

	r.promote()
}

func (r *ResourceWithQ) promote() {
	if r.current != nil || len(r.queued) == 0 {
		return
	}

	next := r.queued[0]
	r.queued = r.queued[1:]
	r.apply(next)
}

func (r *ResourceWithQ) scheduleExpiry(n *CapacityChangeNotice) {
	if math.IsInf(n.duration, 1) {
		return
	}

	n.expiry = r.sched.Schedule(n.duration, n.priority,
		func(*timing.Event) { r.expire(n) }, n)
	n.expiry.SetOwner(r)
	n.expiry.SetName("Capacity change expiry " + r.name)
	n.endTime = n.expiry.Time()

	r.timers = append(r.timers, n)
}

func (r *ResourceWithQ) expire(n *CapacityChangeNotice) {
	n.expired = true
	n.expiry = nil
	r.timers = removeNotice(r.timers, n)

	switch {
	case r.current == n:
		r.current = nil
		r.logger.
			WithField("resource", r.name).
			WithField("unwithdrawn", n.amountNeeded).
			Debug("capacity change expired before all units were withdrawn")
	case !n.applied:
		r.queued = removeNotice(r.queued, n)
	}

	r.invokeNotice(HookPosNoticeExpired, n)
	r.promote()
}

func (r *ResourceWithQ) fillRequests() {
	var granted []grant

	for !r.queue.IsEmpty() {
		available := r.NumAvailableUnits()
		if available == 0 {
			break
		}

		req := r.selector.Select(r.queue.Requests(), available)
		if req == nil || !req.CanBeFilled(available) {
			break
		}

		r.queue.remove(req)
		a := r.Allocate(req.entity, req.amount, r.queue)
		granted = append(granted, grant{request: req, allocation: a})
	}

	for _, g := range granted {
		p := g.request.entity
		if !p.IsSuspended() || p.Resumer() != g.request.resumer {
			continue
		}

		p.Resume(g.allocation)
	}
}

// Reset restores the initial capacity and forgets every request and notice.
func (r *ResourceWithQ) Reset() {
	for _, n := range r.timers {
		if n.expiry != nil {
			r.sched.Cancel(n.expiry)
			n.expiry = nil
		}
	}

	r.timers = nil
	r.current = nil
	r.queued = nil
	r.queue.requests = nil
	r.Resource.Reset()
}

func (r *ResourceWithQ) invokeNotice(
	pos *hooking.HookPos,
	n *CapacityChangeNotice,
) {
	if r.NumHooks() == 0 {
		return
	}

	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Now:    r.sched.Now(),
		Pos:    pos,
		Item:   n,
	})
}

func removeNotice(
	list []*CapacityChangeNotice,
	n *CapacityChangeNotice,
) []*CapacityChangeNotice {
	for i, x := range list {
		if x == n {
			return append(list[:i:i], list[i+1:]...)
		}
	}

	return list
}
