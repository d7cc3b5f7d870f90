package tracing_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/procsim/sim/id"
	"github.com/sarchlab/procsim/sim/process"
	"github.com/sarchlab/procsim/sim/resource"
	"github.com/sarchlab/procsim/sim/timing"
	"github.com/sarchlab/procsim/tracing"
)

var _ = Describe("Tally", func() {
	It("should summarize observations", func() {
		var t tracing.Tally

		Expect(t.Mean()).To(Equal(0.0))

		t.Add(2)
		t.Add(6)
		t.Add(1)

		Expect(t.Count()).To(Equal(uint64(3)))
		Expect(t.Total()).To(Equal(9.0))
		Expect(t.Mean()).To(Equal(3.0))
		Expect(t.Max()).To(Equal(6.0))

		t.Reset()
		Expect(t.Count()).To(BeZero())
	})
})

var _ = Describe("Tracers", func() {
	var (
		exec     *timing.Executive
		manager  *process.Manager
		server   *resource.ResourceWithQ
		lifetime *tracing.LifetimeTracer
		wait     *tracing.WaitTimeTracer
		busy     *tracing.BusyTimeTracer
	)

	customer := func(
		name string,
		arrive, hold timing.VTimeInSec,
	) *process.Process {
		return manager.Start(name, arrive, func(p *process.Process) {
			a := server.Seize(p, 1, 0)
			p.Delay(hold, timing.DefaultPriority)
			a.Release()
		})
	}

	BeforeEach(func() {
		exec = timing.NewExecutive()
		manager = process.NewManager(exec, id.NewAllocator(), nil)
		server = resource.MakeBuilder().WithScheduler(exec).Build("server")

		lifetime = tracing.NewLifetimeTracer(tracing.NamePrefix("Customer-"))
		wait = tracing.NewWaitTimeTracer(nil)
		busy = tracing.NewBusyTimeTracer()

		manager.AcceptHook(lifetime)
		server.Queue().AcceptHook(wait)
		server.AcceptHook(busy)
	})

	Context("when every customer is served", func() {
		BeforeEach(func() {
			customer("Customer-A", 0, 4)
			customer("Customer-B", 1, 2)
			manager.Start("Clock", 0, func(p *process.Process) {
				p.Delay(10, timing.DefaultPriority)
			})

			Expect(exec.Run()).To(Succeed())
		})

		It("should measure the lifetime of the filtered processes", func() {
			lifetimes := lifetime.Lifetimes()

			Expect(lifetime.NumStarted()).To(Equal(uint64(2)))
			Expect(lifetimes.Count()).To(Equal(uint64(2)))
			Expect(lifetimes.Mean()).To(Equal(4.5))
			Expect(lifetimes.Max()).To(Equal(5.0))
		})

		It("should measure the time spent in the queue", func() {
			waits := wait.Waits()

			Expect(waits.Count()).To(Equal(uint64(1)))
			Expect(waits.Total()).To(Equal(3.0))
		})

		It("should integrate the busy units", func() {
			Expect(busy.BusyUnitTime(10)).To(Equal(6.0))
			Expect(busy.MeanBusy(10)).To(Equal(0.6))
		})

		It("should restart after a reset", func() {
			busy.Reset(10, 1)
			lifetime.Reset()
			wait.Reset()

			Expect(busy.MeanBusy(12)).To(Equal(1.0))
			lifetimes := lifetime.Lifetimes()
			waits := wait.Waits()
			Expect(lifetimes.Count()).To(BeZero())
			Expect(waits.Count()).To(BeZero())
		})
	})

	Context("when a waiting customer is terminated", func() {
		It("should count it apart", func() {
			customer("Customer-C", 0, 5)
			d := customer("Customer-D", 0, 5)
			exec.Schedule(1, timing.DefaultPriority, func(*timing.Event) {
				d.Terminate()
			}, nil)

			Expect(exec.Run()).To(Succeed())

			Expect(lifetime.NumTerminated()).To(Equal(uint64(1)))
			lifetimes := lifetime.Lifetimes()
			waits := wait.Waits()
			Expect(lifetimes.Count()).To(Equal(uint64(1)))
			Expect(lifetimes.Total()).To(Equal(5.0))
			Expect(waits.Total()).To(Equal(1.0))
		})
	})
})
