package resource

import (
	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/process"
	"github.com/sarchlab/procsim/sim/timing"
)

// Hook positions of a request queue.
var (
	// HookPosEnqueue triggers when a request starts waiting. Item: *Request.
	HookPosEnqueue = &hooking.HookPos{Name: "RequestEnqueue"}

	// HookPosDequeue triggers when a request stops waiting, either because it
	// is filled or because its entity is terminated. Item: *Request.
	HookPosDequeue = &hooking.HookPos{Name: "RequestDequeue"}
)

// A Request is an entity waiting for units of a resource.
type Request struct {
	entity      *process.Process
	amount      int
	priority    int
	seq         uint64
	enqueueTime timing.VTimeInSec
	resumer     *seizeResumer
}

// Entity returns the waiting process.
func (r *Request) Entity() *process.Process {
	return r.entity
}

// Amount returns the number of units requested.
func (r *Request) Amount() int {
	return r.amount
}

// Priority returns the queueing priority. Lower values are served first.
func (r *Request) Priority() int {
	return r.priority
}

// EnqueueTime returns when the request started waiting.
func (r *Request) EnqueueTime() timing.VTimeInSec {
	return r.enqueueTime
}

// CanBeFilled tells if the request fits in the given number of units.
func (r *Request) CanBeFilled(available int) bool {
	return r.amount <= available
}

// A RequestQueue holds the requests waiting for a resource, ordered by
// priority and then by arrival.
type RequestQueue struct {
	hooking.HookableBase

	name     string
	clock    timing.TimeTeller
	requests []*Request
	nextSeq  uint64
}

// NewRequestQueue creates an empty queue.
func NewRequestQueue(name string, clock timing.TimeTeller) *RequestQueue {
	return &RequestQueue{name: name, clock: clock}
}

// Name returns the name of the queue.
func (q *RequestQueue) Name() string {
	return q.name
}

// Len returns the number of waiting requests.
func (q *RequestQueue) Len() int {
	return len(q.requests)
}

// IsEmpty tells if nothing is waiting.
func (q *RequestQueue) IsEmpty() bool {
	return len(q.requests) == 0
}

// Requests returns the waiting requests in queue order. The slice must not be
// modified.
func (q *RequestQueue) Requests() []*Request {
	return q.requests
}

// Peek returns the first request in queue order, or nil.
func (q *RequestQueue) Peek() *Request {
	if len(q.requests) == 0 {
		return nil
	}

	return q.requests[0]
}

// Contains tells if the entity has a request in the queue.
func (q *RequestQueue) Contains(entity *process.Process) bool {
	for _, r := range q.requests {
		if r.entity == entity {
			return true
		}
	}

	return false
}

func (q *RequestQueue) enqueue(r *Request) {
	q.nextSeq++
	r.seq = q.nextSeq
	r.enqueueTime = q.clock.Now()

	i := len(q.requests)
	for i > 0 && q.requests[i-1].priority > r.priority {
		i--
	}

	q.requests = append(q.requests, nil)
	copy(q.requests[i+1:], q.requests[i:])
	q.requests[i] = r

	q.invoke(HookPosEnqueue, r)
}

func (q *RequestQueue) remove(r *Request) bool {
	for i, waiting := range q.requests {
		if waiting == r {
			q.requests = append(q.requests[:i:i], q.requests[i+1:]...)
			q.invoke(HookPosDequeue, r)

			return true
		}
	}

	return false
}

func (q *RequestQueue) invoke(pos *hooking.HookPos, r *Request) {
	if q.NumHooks() == 0 {
		return
	}

	q.InvokeHook(hooking.HookCtx{
		Domain: q,
		Now:    q.clock.Now(),
		Pos:    pos,
		Item:   r,
		Detail: q.clock.Now() - r.enqueueTime,
	})
}

// A RequestSelector picks the next request to fill. It returns nil when no
// request should be filled with the available units.
type RequestSelector interface {
	Select(requests []*Request, available int) *Request
}

// RequestSelectorFunc adapts a function into a RequestSelector.
type RequestSelectorFunc func(requests []*Request, available int) *Request

// Select calls f.
func (f RequestSelectorFunc) Select(
	requests []*Request,
	available int,
) *Request {
	return f(requests, available)
}

// FirstFillable selects the first request in queue order that fits. Small
// requests may overtake a large one that does not fit.
var FirstFillable RequestSelector = RequestSelectorFunc(
	func(requests []*Request, available int) *Request {
		for _, r := range requests {
			if r.CanBeFilled(available) {
				return r
			}
		}

		return nil
	})

// HeadOnly selects the head of the queue only if it fits, so that requests
// are always filled in queue order.
var HeadOnly RequestSelector = RequestSelectorFunc(
	func(requests []*Request, available int) *Request {
		if len(requests) == 0 || !requests[0].CanBeFilled(available) {
			return nil
		}

		return requests[0]
	})

type seizeResumer struct {
	queue   *RequestQueue
	request *Request
}

func (s *seizeResumer) Arm(*process.Process) {
	s.queue.enqueue(s.request)
}

func (s *seizeResumer) Disarm(*process.Process) {
	s.queue.remove(s.request)
}
