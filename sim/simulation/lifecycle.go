package simulation

// An Element is a named part of a model, such as a resource or a queue.
type Element interface {
	Name() string
}

// Lifecycle holds the callbacks an element wants to receive from the
// experiment runner. Nil callbacks are skipped.
type Lifecycle struct {
	// BeforeExperiment runs once before the first replication.
	BeforeExperiment func()

	// BeforeReplication runs before every replication, after the executive
	// has been reset. Elements restore their initial state here.
	BeforeReplication func()

	// Initialize runs after every element has been reset. Elements schedule
	// their first events and start their processes here.
	Initialize func()

	// WarmUp runs at the end of the warm-up period. Statistics collected so
	// far should be discarded.
	WarmUp func()

	// AfterReplication runs after the executive stops and every live process
	// has been terminated.
	AfterReplication func()

	// AfterExperiment runs once after the last replication.
	AfterExperiment func()
}

type registeredElement struct {
	element   Element
	lifecycle Lifecycle
}

func (s *Simulation) forEachElement(pick func(l Lifecycle) func()) {
	for _, e := range s.elements {
		if f := pick(e.lifecycle); f != nil {
			f()
		}
	}
}
