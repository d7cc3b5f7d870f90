package timing

import (
	"container/heap"
	"container/list"
	"sync"
)

// A Calendar is an ordered container of pending events.
type Calendar interface {
	// Add inserts an event.
	Add(evt *Event)

	// Next removes and returns the earliest event, or nil if there is none.
	// Cancelled events are returned as well; the caller skips them.
	Next() *Event

	// Peek returns the earliest event without removing it, or nil.
	Peek() *Event

	// Cancel flags an event as cancelled. The event is removed lazily.
	Cancel(evt *Event)

	// Clear removes all the events.
	Clear()

	// Size returns the number of events in the calendar, including the
	// cancelled ones that have not been popped yet.
	Size() int
}

// HeapCalendar provides a thread safe calendar backed by a binary heap.
type HeapCalendar struct {
	sync.Mutex
	events eventHeap
}

// NewHeapCalendar creates and returns a newly created HeapCalendar.
func NewHeapCalendar() *HeapCalendar {
	c := new(HeapCalendar)
	c.events = make([]*Event, 0)
	heap.Init(&c.events)

	return c
}

// Add adds an event to the calendar.
func (c *HeapCalendar) Add(evt *Event) {
	c.Lock()
	heap.Push(&c.events, evt)
	c.Unlock()
}

// Next returns the next earliest event.
func (c *HeapCalendar) Next() *Event {
	c.Lock()
	defer c.Unlock()

	if c.events.Len() == 0 {
		return nil
	}

	return heap.Pop(&c.events).(*Event)
}

// Peek returns the event in front of the calendar without removing it.
func (c *HeapCalendar) Peek() *Event {
	c.Lock()
	defer c.Unlock()

	if c.events.Len() == 0 {
		return nil
	}

	return c.events[0]
}

// Cancel marks the event as cancelled.
func (c *HeapCalendar) Cancel(evt *Event) {
	c.Lock()
	evt.cancelled = true
	c.Unlock()
}

// Clear drops all the events.
func (c *HeapCalendar) Clear() {
	c.Lock()
	for _, evt := range c.events {
		evt.index = -1
	}
	c.events = c.events[:0]
	c.Unlock()
}

// Size returns the number of events in the calendar.
func (c *HeapCalendar) Size() int {
	c.Lock()
	l := c.events.Len()
	c.Unlock()

	return l
}

type eventHeap []*Event

// Len returns the length of the event queue
func (h eventHeap) Len() int {
	return len(h)
}

// Less returns true if the i-th event happens before the j-th event.
func (h eventHeap) Less(i, j int) bool {
	return h[i].before(h[j])
}

// Swap changes the position of two events in the event queue
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

// Push adds an event into the event queue
func (h *eventHeap) Push(x interface{}) {
	event := x.(*Event)
	event.index = len(*h)
	*h = append(*h, event)
}

// Pop removes and returns the next event to happen
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	event := old[n-1]
	old[n-1] = nil
	event.index = -1
	*h = old[0 : n-1]

	return event
}

// ListCalendar is a calendar that is based on insertion sort. It is cheaper
// than the HeapCalendar when most events are scheduled close to now.
type ListCalendar struct {
	lock sync.RWMutex
	l    *list.List
}

// NewListCalendar returns a new ListCalendar
func NewListCalendar() *ListCalendar {
	c := new(ListCalendar)
	c.l = list.New()

	return c
}

// Add inserts the event after every event that goes before it.
func (c *ListCalendar) Add(evt *Event) {
	var ele *list.Element

	c.lock.Lock()
	defer c.lock.Unlock()

	for ele = c.l.Back(); ele != nil; ele = ele.Prev() {
		if ele.Value.(*Event).before(evt) {
			break
		}
	}

	evt.index = 0
	if ele != nil {
		c.l.InsertAfter(evt, ele)
	} else {
		c.l.PushFront(evt)
	}
}

// Next returns the event with the smallest time, and removes it from the
// calendar.
func (c *ListCalendar) Next() *Event {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.l.Len() == 0 {
		return nil
	}

	evt := c.l.Remove(c.l.Front()).(*Event)
	evt.index = -1

	return evt
}

// Peek returns the event at the front of the calendar without removing it.
func (c *ListCalendar) Peek() *Event {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.l.Len() == 0 {
		return nil
	}

	return c.l.Front().Value.(*Event)
}

// Cancel marks the event as cancelled.
func (c *ListCalendar) Cancel(evt *Event) {
	c.lock.Lock()
	evt.cancelled = true
	c.lock.Unlock()
}

// Clear drops all the events.
func (c *ListCalendar) Clear() {
	c.lock.Lock()
	for ele := c.l.Front(); ele != nil; ele = ele.Next() {
		ele.Value.(*Event).index = -1
	}
	c.l.Init()
	c.lock.Unlock()
}

// Size return the number of events in the calendar.
func (c *ListCalendar) Size() int {
	c.lock.RLock()
	l := c.l.Len()
	c.lock.RUnlock()

	return l
}
