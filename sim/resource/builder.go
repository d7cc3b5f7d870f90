package resource

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/procsim/sim/simulation"
	"github.com/sarchlab/procsim/sim/timing"
)

// Builder can build resources.
type Builder struct {
	model    simulation.Model
	sched    timing.EventScheduler
	logger   logrus.FieldLogger
	capacity int
	rule     CapacityChangeRule
	selector RequestSelector
}

// MakeBuilder creates a Builder for single-unit resources that use the IGNORE
// rule and fill the first request that fits.
func MakeBuilder() Builder {
	return Builder{
		capacity: 1,
		rule:     RuleIgnore,
		selector: FirstFillable,
	}
}

// WithModel registers the built resources with a model, so that they are reset
// before every replication. The model also provides the scheduler and the
// logger.
func (b Builder) WithModel(m simulation.Model) Builder {
	b.model = m
	return b
}

// WithScheduler sets the scheduler of a resource that does not belong to a
// model.
func (b Builder) WithScheduler(sched timing.EventScheduler) Builder {
	b.sched = sched
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithCapacity sets the initial capacity.
func (b Builder) WithCapacity(capacity int) Builder {
	b.capacity = capacity
	return b
}

// WithRule sets the capacity change rule.
func (b Builder) WithRule(rule CapacityChangeRule) Builder {
	b.rule = rule
	return b
}

// WithSelector sets how waiting requests are picked.
func (b Builder) WithSelector(s RequestSelector) Builder {
	b.selector = s
	return b
}

// Build creates a resource with a request queue.
func (b Builder) Build(name string) *ResourceWithQ {
	sched, logger := b.environment()

	r := &ResourceWithQ{
		Resource: newResource(name, sched, b.capacity),
		sched:    sched,
		logger:   logger,
		queue:    NewRequestQueue(name+".Queue", sched),
		selector: b.selector,
		rule:     b.rule,
	}
	r.Resource.release = r.Deallocate

	if b.model != nil {
		b.model.RegisterElement(r, simulation.Lifecycle{
			BeforeReplication: r.Reset,
		})
	}

	return r
}

// BuildResource creates a resource without a request queue.
func (b Builder) BuildResource(name string) *Resource {
	sched, _ := b.environment()

	r := newResource(name, sched, b.capacity)

	if b.model != nil {
		b.model.RegisterElement(r, simulation.Lifecycle{
			BeforeReplication: r.Reset,
		})
	}

	return r
}

func (b Builder) environment() (timing.EventScheduler, logrus.FieldLogger) {
	sched := b.sched
	logger := b.logger

	if b.model != nil {
		if sched == nil {
			sched = b.model.Executive()
		}

		if logger == nil {
			logger = b.model.Logger()
		}
	}

	if sched == nil {
		panic("resource: a model or a scheduler is required")
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	if b.selector == nil {
		panic("resource: selector must not be nil")
	}

	return sched, logger
}
