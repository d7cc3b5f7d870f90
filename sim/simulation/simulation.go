// Package simulation ties the executive, the process manager and the model
// elements together and runs experiments made of several replications.
package simulation

import (
	"context"
	"fmt"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/id"
	"github.com/sarchlab/procsim/sim/process"
	"github.com/sarchlab/procsim/sim/rvs"
	"github.com/sarchlab/procsim/sim/timing"
)

// Hook positions of a simulation.
var (
	// HookPosReplicationStart triggers after the elements are initialized.
	// Item: the replication number (int).
	HookPosReplicationStart = &hooking.HookPos{Name: "ReplicationStart"}

	// HookPosReplicationEnd triggers after the after-replication callbacks.
	// Item: ReplicationResult.
	HookPosReplicationEnd = &hooking.HookPos{Name: "ReplicationEnd"}
)

// A Model is what model elements need from the simulation they belong to.
type Model interface {
	Executive() *timing.Executive
	Processes() *process.Manager
	Streams() *rvs.Streams
	Logger() logrus.FieldLogger
	RegisterElement(e Element, l Lifecycle)
}

// ReplicationResult summarizes a finished replication.
type ReplicationResult struct {
	Replication   int
	EndTime       timing.VTimeInSec
	EndReason     timing.EndReason
	NumDispatched uint64
}

// A Simulation provides the services required to define and run a model.
type Simulation struct {
	hooking.HookableBase

	id        string
	ids       id.Allocator
	exec      *timing.Executive
	processes *process.Manager
	streams   *rvs.Streams
	logger    logrus.FieldLogger

	experiment  Experiment
	elements    []registeredElement
	byName      map[string]Element
	replication int
	results     []ReplicationResult
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Name returns the name of the simulation.
func (s *Simulation) Name() string {
	return s.experiment.Name
}

// Executive returns the executive that drives the simulation.
func (s *Simulation) Executive() *timing.Executive {
	return s.exec
}

// Processes returns the process manager.
func (s *Simulation) Processes() *process.Manager {
	return s.processes
}

// Streams returns the random streams of the model.
func (s *Simulation) Streams() *rvs.Streams {
	return s.streams
}

// Logger returns the logger of the simulation.
func (s *Simulation) Logger() logrus.FieldLogger {
	return s.logger
}

// IDAllocator returns the allocator shared by the elements of the model.
func (s *Simulation) IDAllocator() id.Allocator {
	return s.ids
}

// Experiment returns the experiment settings.
func (s *Simulation) Experiment() Experiment {
	return s.experiment
}

// Replication returns the number of the current or last replication.
func (s *Simulation) Replication() int {
	return s.replication
}

// Results returns the summaries of the finished replications.
func (s *Simulation) Results() []ReplicationResult {
	return s.results
}

// RegisterElement adds an element to the model. Lifecycle callbacks run in
// registration order. Registering two elements with the same name panics.
func (s *Simulation) RegisterElement(e Element, l Lifecycle) {
	name := e.Name()

	if _, ok := s.byName[name]; ok {
		panic("simulation: element " + name + " already registered")
	}

	s.byName[name] = e
	s.elements = append(s.elements, registeredElement{element: e, lifecycle: l})
}

// GetElementByName returns the element with the given name, or nil.
func (s *Simulation) GetElementByName(name string) Element {
	return s.byName[name]
}

// Elements returns all the elements in registration order.
func (s *Simulation) Elements() []Element {
	out := make([]Element, len(s.elements))
	for i, e := range s.elements {
		out[i] = e.element
	}

	return out
}

// Run runs every replication of the experiment. If ctx is cancelled the
// current replication is stopped and no further replication starts; the
// after-experiment callbacks still run.
func (s *Simulation) Run(ctx context.Context) error {
	if err := s.experiment.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	s.results = nil
	s.streams.ResetStartStream()

	s.logger.WithFields(logrus.Fields{
		"simulation":   s.id,
		"experiment":   s.experiment.Name,
		"replications": s.experiment.NumReplications,
	}).Info("experiment started")

	s.forEachElement(func(l Lifecycle) func() { return l.BeforeExperiment })

	var runErr error

	for rep := 0; rep < s.experiment.NumReplications; rep++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		if err := s.runReplication(ctx, rep); err != nil {
			runErr = err
			break
		}
	}

	s.forEachElement(func(l Lifecycle) func() { return l.AfterExperiment })

	if runErr != nil {
		s.logger.WithError(runErr).
			WithField("replications", len(s.results)).
			Warn("experiment interrupted")

		return runErr
	}

	s.logger.WithField("experiment", s.experiment.Name).
		Info("experiment completed")

	return nil
}

func (s *Simulation) runReplication(ctx context.Context, rep int) error {
	s.replication = rep

	if rep > 0 && s.experiment.AdvanceStreams {
		s.streams.AdvanceToReplication(rep)
	}

	s.exec.Reset()
	s.exec.SetMaxWallClock(s.experiment.MaxWallClock)
	s.processes.Reset()

	s.forEachElement(func(l Lifecycle) func() { return l.BeforeReplication })
	s.forEachElement(func(l Lifecycle) func() { return l.Initialize })

	if s.experiment.LengthOfWarmUp > 0 {
		evt := s.exec.ScheduleAt(s.experiment.LengthOfWarmUp,
			timing.WarmUpPriority, func(*timing.Event) {
				s.logger.WithField("replication", rep).Debug("warm up ended")
				s.forEachElement(func(l Lifecycle) func() { return l.WarmUp })
			}, nil)
		evt.SetName("WarmUp")
	}

	if s.experiment.LengthOfReplication > 0 {
		s.exec.ScheduleEndOfReplication(s.experiment.LengthOfReplication)
	}

	s.invoke(HookPosReplicationStart, rep)
	s.logger.WithField("replication", rep).Info("replication started")

	err := s.runExecutive(ctx)

	s.processes.TerminateAll()
	s.forEachElement(func(l Lifecycle) func() { return l.AfterReplication })

	result := ReplicationResult{
		Replication:   rep,
		EndTime:       s.exec.Now(),
		EndReason:     s.exec.EndReason(),
		NumDispatched: s.exec.NumDispatched(),
	}
	s.results = append(s.results, result)

	s.invoke(HookPosReplicationEnd, result)
	s.logger.WithFields(logrus.Fields{
		"replication": rep,
		"end_time":    result.EndTime,
		"reason":      result.EndReason,
		"events":      result.NumDispatched,
	}).Info("replication ended")

	return err
}

func (s *Simulation) runExecutive(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.exec.Stop()
		case <-done:
		}
	}()

	if err := s.exec.Run(); err != nil {
		return err
	}

	return ctx.Err()
}

func (s *Simulation) invoke(pos *hooking.HookPos, item any) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Now:    s.exec.Now(),
		Pos:    pos,
		Item:   item,
	})
}

// Builder can build simulations.
type Builder struct {
	experiment Experiment
	logger     logrus.FieldLogger
	calendar   timing.Calendar
}

// MakeBuilder creates a Builder with the default experiment.
func MakeBuilder() Builder {
	return Builder{experiment: DefaultExperiment()}
}

// WithExperiment sets the experiment settings.
func (b Builder) WithExperiment(e Experiment) Builder {
	b.experiment = e
	return b
}

// WithLogger sets the logger shared by the executive, the process manager and
// the runner.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithCalendar replaces the default heap calendar of the executive.
func (b Builder) WithCalendar(c timing.Calendar) Builder {
	b.calendar = c
	return b
}

// Build creates the simulation.
func (b Builder) Build() *Simulation {
	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ids := id.NewAllocator()
	exec := timing.MakeBuilder().
		WithIDAllocator(id.NewPrefixedAllocator("evt")).
		WithCalendar(b.calendar).
		WithLogger(logger).
		WithMaxWallClock(b.experiment.MaxWallClock).
		Build()

	return &Simulation{
		id:         xid.New().String(),
		ids:        ids,
		exec:       exec,
		processes:  process.NewManager(exec, id.NewAllocator(), logger),
		streams:    rvs.NewStreams(b.experiment.BaseSeed),
		logger:     logger,
		experiment: b.experiment,
		byName:     make(map[string]Element),
	}
}
