package timing

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/procsim/sim/id"
)

// Builder can build Executives.
type Builder struct {
	ids          id.Allocator
	calendar     Calendar
	logger       logrus.FieldLogger
	maxWallClock time.Duration
}

// MakeBuilder creates a Builder with a heap calendar and the standard logger.
func MakeBuilder() Builder {
	return Builder{}
}

// WithIDAllocator sets the allocator that names the events.
func (b Builder) WithIDAllocator(ids id.Allocator) Builder {
	b.ids = ids
	return b
}

// WithCalendar replaces the default heap calendar.
func (b Builder) WithCalendar(c Calendar) Builder {
	b.calendar = c
	return b
}

// WithLogger sets the logger used for run-level messages.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithMaxWallClock limits the real time a single run may take.
func (b Builder) WithMaxWallClock(d time.Duration) Builder {
	b.maxWallClock = d
	return b
}

// Build creates the Executive.
func (b Builder) Build() *Executive {
	e := &Executive{
		ids:          b.ids,
		calendar:     b.calendar,
		logger:       b.logger,
		maxWallClock: b.maxWallClock,
	}

	if e.ids == nil {
		e.ids = id.NewPrefixedAllocator("evt")
	}

	if e.calendar == nil {
		e.calendar = NewHeapCalendar()
	}

	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}

	return e
}

// NewExecutive creates an Executive with all the defaults.
func NewExecutive() *Executive {
	return MakeBuilder().Build()
}
