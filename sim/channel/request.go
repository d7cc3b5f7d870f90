package channel

import (
	"github.com/sarchlab/procsim/sim/process"
	"github.com/sarchlab/procsim/sim/timing"
)

// A Predicate selects the items a receiver accepts.
type Predicate[T comparable] func(item T) bool

// Any accepts every item.
func Any[T comparable](T) bool {
	return true
}

// A ReceiveRequest is a receiver waiting for items. Whether it can be filled
// is evaluated against the items present at the moment of the question.
type ReceiveRequest[T comparable] struct {
	queue       *BlockingQueue[T]
	receiver    *process.Process
	predicate   Predicate[T]
	amount      int
	priority    int
	seq         uint64
	enqueueTime timing.VTimeInSec
}

// Receiver returns the waiting process.
func (r *ReceiveRequest[T]) Receiver() *process.Process {
	return r.receiver
}

// Amount returns the number of items requested.
func (r *ReceiveRequest[T]) Amount() int {
	return r.amount
}

// Priority returns the queueing priority. Lower values come first.
func (r *ReceiveRequest[T]) Priority() int {
	return r.priority
}

// EnqueueTime returns when the request started waiting.
func (r *ReceiveRequest[T]) EnqueueTime() timing.VTimeInSec {
	return r.enqueueTime
}

// CanBeFilled tells if enough matching items are in the queue now.
func (r *ReceiveRequest[T]) CanBeFilled() bool {
	return r.queue.CanBeFilled(r.predicate, r.amount)
}

// A Sender is a process waiting for space in the queue.
type Sender[T comparable] struct {
	process *process.Process
	amount  int
	seq     uint64
}

// Process returns the waiting process.
func (s *Sender[T]) Process() *process.Process {
	return s.process
}

// Amount returns the number of items the process wants to send.
func (s *Sender[T]) Amount() int {
	return s.amount
}

// A RequestSelector picks the receive request to serve after an item arrives.
// It may return nil.
type RequestSelector[T comparable] interface {
	Select(requests []*ReceiveRequest[T]) *ReceiveRequest[T]
}

// A SenderSelector picks the waiting sender to notify after items leave the
// queue. It may return nil.
type SenderSelector[T comparable] interface {
	Select(senders []*Sender[T]) *Sender[T]
}

// FirstRequest selects the first request in queue order, whether or not it
// can be filled.
type FirstRequest[T comparable] struct{}

// Select returns the head of the request queue.
func (FirstRequest[T]) Select(requests []*ReceiveRequest[T]) *ReceiveRequest[T] {
	if len(requests) == 0 {
		return nil
	}

	return requests[0]
}

// FirstFillableRequest selects the first request in queue order that can be
// filled.
type FirstFillableRequest[T comparable] struct{}

// Select returns the first fillable request.
func (FirstFillableRequest[T]) Select(
	requests []*ReceiveRequest[T],
) *ReceiveRequest[T] {
	for _, r := range requests {
		if r.CanBeFilled() {
			return r
		}
	}

	return nil
}

// FirstSender selects the sender that has waited the longest.
type FirstSender[T comparable] struct{}

// Select returns the first waiting sender.
func (FirstSender[T]) Select(senders []*Sender[T]) *Sender[T] {
	if len(senders) == 0 {
		return nil
	}

	return senders[0]
}

type receiveResumer[T comparable] struct {
	request *ReceiveRequest[T]
}

func (r *receiveResumer[T]) Arm(*process.Process) {
	r.request.queue.enqueueRequest(r.request)
}

func (r *receiveResumer[T]) Disarm(*process.Process) {
	r.request.queue.removeRequest(r.request)
}

type sendResumer[T comparable] struct {
	queue  *BlockingQueue[T]
	sender *Sender[T]
}

func (r *sendResumer[T]) Arm(*process.Process) {
	r.queue.enqueueSender(r.sender)
}

func (r *sendResumer[T]) Disarm(*process.Process) {
	r.queue.removeSender(r.sender)
}
