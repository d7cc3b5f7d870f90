package resource

import (
	"fmt"
	"math"

	"github.com/sarchlab/procsim/sim/simulation"
	"github.com/sarchlab/procsim/sim/timing"
)

// A CapacityItem is one step of a capacity schedule.
type CapacityItem struct {
	Capacity int
	Duration timing.VTimeInSec
}

// A CapacitySchedule sends capacity change notices to its resources at the
// start of each item.
type CapacitySchedule struct {
	name      string
	sched     timing.EventScheduler
	startTime timing.VTimeInSec
	repeat    bool
	priority  int

	items     []CapacityItem
	resources []*ResourceWithQ

	next    int
	cycles  int
	pending *timing.Event
}

// NewCapacitySchedule creates an empty schedule that starts at startTime. A
// repeating schedule starts over after its last item.
func NewCapacitySchedule(
	name string,
	sched timing.EventScheduler,
	startTime timing.VTimeInSec,
	repeat bool,
) *CapacitySchedule {
	if math.IsNaN(startTime) || math.IsInf(startTime, 0) || startTime < 0 {
		panic(fmt.Sprintf(
			"resource: schedule %s cannot start at %v", name, startTime))
	}

	return &CapacitySchedule{
		name:      name,
		sched:     sched,
		startTime: startTime,
		repeat:    repeat,
		priority:  timing.DefaultPriority - 1,
	}
}

// RegisterWith makes the model start the schedule at the beginning of every
// replication.
func (s *CapacitySchedule) RegisterWith(m simulation.Model) {
	m.RegisterElement(s, simulation.Lifecycle{
		Initialize:       s.Start,
		AfterReplication: s.Stop,
	})
}

// Name returns the name of the schedule.
func (s *CapacitySchedule) Name() string {
	return s.name
}

// SetPriority sets the priority of the item events and of the notices they
// issue.
func (s *CapacitySchedule) SetPriority(priority int) {
	s.priority = priority
}

// AddItem appends a step. The duration must be positive, or the schedule
// would never advance.
func (s *CapacitySchedule) AddItem(capacity int, duration timing.VTimeInSec) {
	if capacity < 0 {
		panic(fmt.Sprintf(
			"resource: schedule %s capacity must not be negative, got %d",
			s.name, capacity))
	}

	if math.IsNaN(duration) || duration <= 0 {
		panic(fmt.Sprintf(
			"resource: schedule %s duration must be positive, got %v",
			s.name, duration))
	}

	s.items = append(s.items, CapacityItem{Capacity: capacity, Duration: duration})
}

// Items returns the steps of the schedule.
func (s *CapacitySchedule) Items() []CapacityItem {
	return s.items
}

// Attach makes the schedule drive the capacity of a resource.
func (s *CapacitySchedule) Attach(r *ResourceWithQ) {
	for _, attached := range s.resources {
		if attached == r {
			panic(fmt.Sprintf(
				"resource: %s is already attached to schedule %s",
				r.Name(), s.name))
		}
	}

	s.resources = append(s.resources, r)
}

// NumCycles returns how many times the schedule has gone through all its
// items.
func (s *CapacitySchedule) NumCycles() int {
	return s.cycles
}

// IsRunning tells if an item is scheduled to start.
func (s *CapacitySchedule) IsRunning() bool {
	return s.pending != nil
}

// Start schedules the first item.
func (s *CapacitySchedule) Start() {
	if len(s.items) == 0 {
		return
	}

	s.Stop()
	s.next = 0
	s.cycles = 0
	s.schedule(s.startTime - s.sched.Now())
}

// Stop cancels the next item.
func (s *CapacitySchedule) Stop() {
	if s.pending != nil {
		s.sched.Cancel(s.pending)
		s.pending = nil
	}
}

func (s *CapacitySchedule) schedule(delay timing.VTimeInSec) {
	s.pending = s.sched.Schedule(delay, s.priority, s.startItem, nil)
	s.pending.SetOwner(s)
	s.pending.SetName("Capacity schedule " + s.name)
}

func (s *CapacitySchedule) startItem(*timing.Event) {
	s.pending = nil
	item := s.items[s.next]

	for _, r := range s.resources {
		r.ChangeCapacity(
			NewCapacityChangeNotice(item.Capacity, item.Duration, s.priority))
	}

	s.next++
	if s.next == len(s.items) {
		s.next = 0
		s.cycles++

		if !s.repeat {
			return
		}
	}

	s.schedule(item.Duration)
}
