// Package channel provides a bounded queue through which processes pass items
// to each other.
package channel

import (
	"fmt"
	"math"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/process"
	"github.com/sarchlab/procsim/sim/simulation"
	"github.com/sarchlab/procsim/sim/timing"
)

// Hook positions of a blocking queue.
var (
	// HookPosSend triggers after an item enters the queue. Item: the item.
	HookPosSend = &hooking.HookPos{Name: "ChannelSend"}

	// HookPosReceive triggers after a receiver takes items. Item: []T.
	HookPosReceive = &hooking.HookPos{Name: "ChannelReceive"}

	// HookPosSenderBlocked triggers when a sender starts waiting for space.
	// Item: *process.Process.
	HookPosSenderBlocked = &hooking.HookPos{Name: "ChannelSenderBlocked"}

	// HookPosReceiverBlocked triggers when a receiver starts waiting for
	// items. Item: *process.Process.
	HookPosReceiverBlocked = &hooking.HookPos{Name: "ChannelReceiverBlocked"}
)

// A BlockingQueue is a bounded FIFO of items. Senders wait while it is full
// and receivers wait until enough matching items are present.
//
// Waking is synchronous: an item entering the queue resumes at most one
// receiver before SendToChannel returns, and items leaving the queue notify
// at most one sender, which checks for space again.
type BlockingQueue[T comparable] struct {
	hooking.HookableBase

	name     string
	clock    timing.TimeTeller
	capacity int

	items     []T
	requests  []*ReceiveRequest[T]
	senders   []*Sender[T]
	nextSeq   uint64
	numSent   int
	numTaken  int

	requestSelector RequestSelector[T]
	senderSelector  SenderSelector[T]
}

// Name returns the name of the queue.
func (q *BlockingQueue[T]) Name() string {
	return q.name
}

// Capacity returns the maximum number of items.
func (q *BlockingQueue[T]) Capacity() int {
	return q.capacity
}

// Size returns the number of items in the queue.
func (q *BlockingQueue[T]) Size() int {
	return len(q.items)
}

// IsEmpty tells if the queue has no item.
func (q *BlockingQueue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// IsFull tells if no more item can be sent.
func (q *BlockingQueue[T]) IsFull() bool {
	return len(q.items) >= q.capacity
}

// Items returns the items in arrival order. The slice must not be modified.
func (q *BlockingQueue[T]) Items() []T {
	return q.items
}

// Contains tells if an item is in the queue.
func (q *BlockingQueue[T]) Contains(item T) bool {
	return q.indexOf(item, nil) >= 0
}

// NumWaitingSenders returns the number of processes waiting for space.
func (q *BlockingQueue[T]) NumWaitingSenders() int {
	return len(q.senders)
}

// NumWaitingReceivers returns the number of processes waiting for items.
func (q *BlockingQueue[T]) NumWaitingReceivers() int {
	return len(q.requests)
}

// Requests returns the waiting receive requests in queue order.
func (q *BlockingQueue[T]) Requests() []*ReceiveRequest[T] {
	return q.requests
}

// NumSent returns the number of items that entered the queue.
func (q *BlockingQueue[T]) NumSent() int {
	return q.numSent
}

// NumReceived returns the number of items that left the queue.
func (q *BlockingQueue[T]) NumReceived() int {
	return q.numTaken
}

// CanBeFilled tells if at least amount items that match the predicate are in
// the queue.
func (q *BlockingQueue[T]) CanBeFilled(pred Predicate[T], amount int) bool {
	if amount < 1 {
		return false
	}

	n := 0
	for _, item := range q.items {
		if pred(item) {
			n++
			if n >= amount {
				return true
			}
		}
	}

	return false
}

// SendToChannel puts an item into a queue that is not full. The request
// selector then picks a waiting receiver, which is resumed if it can be
// filled.
func (q *BlockingQueue[T]) SendToChannel(item T) {
	if q.IsFull() {
		panic(fmt.Sprintf("channel: %s is full", q.name))
	}

	q.put(item)
	q.serveReceiver()
}

func (q *BlockingQueue[T]) put(item T) {
	q.items = append(q.items, item)
	q.numSent++
	q.invoke(HookPosSend, item)
}

// serveReceiver resumes the selected receiver if it can be filled. The
// receiver runs before serveReceiver returns.
func (q *BlockingQueue[T]) serveReceiver() {
	req := q.requestSelector.Select(q.requests)
	if req == nil || !req.CanBeFilled() {
		return
	}

	q.removeRequest(req)
	req.receiver.Resume(nil)
}

// RemoveAllFromChannel takes items out of the queue. Every item must be
// present. The sender selector then picks a waiting sender, which is resumed
// to check for space again.
func (q *BlockingQueue[T]) RemoveAllFromChannel(items []T) {
	taken := make([]bool, len(q.items))

	for _, item := range items {
		idx := q.indexOf(item, taken)
		if idx < 0 {
			panic(fmt.Sprintf("channel: item %v is not in %s", item, q.name))
		}

		taken[idx] = true
	}

	kept := q.items[:0:0]
	for i, item := range q.items {
		if !taken[i] {
			kept = append(kept, item)
		}
	}

	q.items = kept
	q.numTaken += len(items)

	q.notifySender()
}

// Send puts an item into the queue on behalf of the running process p,
// waiting while the queue is full.
func (q *BlockingQueue[T]) Send(p *process.Process, item T) {
	q.SendItems(p, []T{item})
}

// SendItems puts several items into the queue on behalf of the running
// process p. The process waits until there is room for all of them.
func (q *BlockingQueue[T]) SendItems(p *process.Process, items []T) {
	mustBeRunning(p, q.name)

	if len(items) > q.capacity {
		panic(fmt.Sprintf(
			"channel: cannot send %d items to %s of capacity %d",
			len(items), q.name, q.capacity))
	}

	var s *Sender[T]
	for q.capacity-len(q.items) < len(items) {
		if s == nil {
			q.nextSeq++
			s = &Sender[T]{process: p, amount: len(items), seq: q.nextSeq}
		}

		p.Suspend(&sendResumer[T]{queue: q, sender: s})
	}

	// Every item is in the queue before any receiver runs.
	for _, item := range items {
		q.put(item)
	}

	for range items {
		q.serveReceiver()
	}
}

// Receive takes amount items that match the predicate on behalf of the
// running process p, waiting until they are all present. Lower priorities
// are served first.
func (q *BlockingQueue[T]) Receive(
	p *process.Process,
	pred Predicate[T],
	amount int,
	priority int,
) []T {
	mustBeRunning(p, q.name)

	if amount < 1 {
		panic(fmt.Sprintf(
			"channel: must receive at least one item from %s, got %d",
			q.name, amount))
	}

	req := &ReceiveRequest[T]{
		queue:     q,
		receiver:  p,
		predicate: pred,
		amount:    amount,
		priority:  priority,
	}

	for !req.CanBeFilled() {
		p.Suspend(&receiveResumer[T]{request: req})
	}

	items := q.collect(pred, amount)
	q.invoke(HookPosReceive, items)
	q.RemoveAllFromChannel(items)

	return items
}

// ReceiveAny takes the first amount items, whatever they are.
func (q *BlockingQueue[T]) ReceiveAny(p *process.Process, amount int) []T {
	return q.Receive(p, Any[T], amount, 0)
}

// Clear drops every item and forgets the waiting processes.
func (q *BlockingQueue[T]) Clear() {
	q.items = nil
	q.requests = nil
	q.senders = nil
	q.nextSeq = 0
	q.numSent = 0
	q.numTaken = 0
}

func (q *BlockingQueue[T]) collect(pred Predicate[T], amount int) []T {
	out := make([]T, 0, amount)
	for _, item := range q.items {
		if pred(item) {
			out = append(out, item)
			if len(out) == amount {
				break
			}
		}
	}

	return out
}

func (q *BlockingQueue[T]) indexOf(item T, skip []bool) int {
	for i, x := range q.items {
		if x == item && (skip == nil || !skip[i]) {
			return i
		}
	}

	return -1
}

func (q *BlockingQueue[T]) notifySender() {
	s := q.senderSelector.Select(q.senders)
	if s == nil {
		return
	}

	q.removeSender(s)
	s.process.Resume(nil)
}

func (q *BlockingQueue[T]) enqueueRequest(r *ReceiveRequest[T]) {
	if r.seq == 0 {
		q.nextSeq++
		r.seq = q.nextSeq
		r.enqueueTime = q.clock.Now()
	}

	i := len(q.requests)
	for i > 0 && requestAfter(q.requests[i-1], r) {
		i--
	}

	q.requests = append(q.requests, nil)
	copy(q.requests[i+1:], q.requests[i:])
	q.requests[i] = r

	q.invoke(HookPosReceiverBlocked, r.receiver)
}

func requestAfter[T comparable](a, b *ReceiveRequest[T]) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}

	return a.seq > b.seq
}

func (q *BlockingQueue[T]) removeRequest(r *ReceiveRequest[T]) {
	for i, x := range q.requests {
		if x == r {
			q.requests = append(q.requests[:i:i], q.requests[i+1:]...)
			return
		}
	}
}

func (q *BlockingQueue[T]) enqueueSender(s *Sender[T]) {
	i := len(q.senders)
	for i > 0 && q.senders[i-1].seq > s.seq {
		i--
	}

	q.senders = append(q.senders, nil)
	copy(q.senders[i+1:], q.senders[i:])
	q.senders[i] = s

	q.invoke(HookPosSenderBlocked, s.process)
}

func (q *BlockingQueue[T]) removeSender(s *Sender[T]) {
	for i, x := range q.senders {
		if x == s {
			q.senders = append(q.senders[:i:i], q.senders[i+1:]...)
			return
		}
	}
}

func (q *BlockingQueue[T]) invoke(pos *hooking.HookPos, item any) {
	if q.NumHooks() == 0 {
		return
	}

	q.InvokeHook(hooking.HookCtx{
		Domain: q,
		Now:    q.clock.Now(),
		Pos:    pos,
		Item:   item,
	})
}

func mustBeRunning(p *process.Process, name string) {
	if p == nil || p.State() != process.StateRunning {
		panic(fmt.Sprintf(
			"channel: %s can only be used by the running process", name))
	}
}

// Builder can build blocking queues.
type Builder[T comparable] struct {
	model           simulation.Model
	clock           timing.TimeTeller
	capacity        int
	requestSelector RequestSelector[T]
	senderSelector  SenderSelector[T]
}

// MakeBuilder creates a Builder for unbounded queues that serve the first
// request and the first sender.
func MakeBuilder[T comparable]() Builder[T] {
	return Builder[T]{
		capacity:        math.MaxInt,
		requestSelector: FirstRequest[T]{},
		senderSelector:  FirstSender[T]{},
	}
}

// WithModel registers the built queues with a model, so that they are
// cleared before every replication.
func (b Builder[T]) WithModel(m simulation.Model) Builder[T] {
	b.model = m
	return b
}

// WithClock sets the clock of a queue that does not belong to a model.
func (b Builder[T]) WithClock(clock timing.TimeTeller) Builder[T] {
	b.clock = clock
	return b
}

// WithCapacity sets the maximum number of items.
func (b Builder[T]) WithCapacity(capacity int) Builder[T] {
	b.capacity = capacity
	return b
}

// WithRequestSelector sets how a waiting receiver is picked.
func (b Builder[T]) WithRequestSelector(s RequestSelector[T]) Builder[T] {
	b.requestSelector = s
	return b
}

// WithSenderSelector sets how a waiting sender is picked.
func (b Builder[T]) WithSenderSelector(s SenderSelector[T]) Builder[T] {
	b.senderSelector = s
	return b
}

// Build creates the queue.
func (b Builder[T]) Build(name string) *BlockingQueue[T] {
	if b.capacity < 1 {
		panic(fmt.Sprintf(
			"channel: capacity of %s must be positive, got %d",
			name, b.capacity))
	}

	clock := b.clock
	if clock == nil && b.model != nil {
		clock = b.model.Executive()
	}

	if clock == nil {
		panic("channel: a model or a clock is required")
	}

	q := &BlockingQueue[T]{
		name:            name,
		clock:           clock,
		capacity:        b.capacity,
		requestSelector: b.requestSelector,
		senderSelector:  b.senderSelector,
	}

	if b.model != nil {
		b.model.RegisterElement(q, simulation.Lifecycle{
			BeforeReplication: q.Clear,
		})
	}

	return q
}
