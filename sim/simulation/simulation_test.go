package simulation_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/process"
	"github.com/sarchlab/procsim/sim/resource"
	"github.com/sarchlab/procsim/sim/simulation"
	"github.com/sarchlab/procsim/sim/timing"
)

func recordingLifecycle(name string, log *[]string) simulation.Lifecycle {
	add := func(stage string) func() {
		return func() { *log = append(*log, name+":"+stage) }
	}

	return simulation.Lifecycle{
		BeforeExperiment:  add("BeforeExperiment"),
		BeforeReplication: add("BeforeReplication"),
		Initialize:        add("Initialize"),
		WarmUp:            add("WarmUp"),
		AfterReplication:  add("AfterReplication"),
		AfterExperiment:   add("AfterExperiment"),
	}
}

var _ = Describe("Simulation", func() {
	var (
		exp simulation.Experiment
		s   *simulation.Simulation
	)

	BeforeEach(func() {
		exp = simulation.DefaultExperiment()
		exp.Name = "test"
		exp.NumReplications = 2
		exp.LengthOfReplication = 10
		exp.LengthOfWarmUp = 4
	})

	JustBeforeEach(func() {
		s = simulation.MakeBuilder().WithExperiment(exp).Build()
	})

	It("should give every simulation a unique id", func() {
		other := simulation.MakeBuilder().WithExperiment(exp).Build()

		Expect(s.ID()).NotTo(BeEmpty())
		Expect(s.ID()).NotTo(Equal(other.ID()))
		Expect(s.Name()).To(Equal("test"))
	})

	It("should register elements by name", func() {
		s.RegisterElement(namedElement("a"), simulation.Lifecycle{})
		s.RegisterElement(namedElement("b"), simulation.Lifecycle{})

		Expect(s.GetElementByName("b")).To(Equal(namedElement("b")))
		Expect(s.GetElementByName("c")).To(BeNil())
		Expect(s.Elements()).To(Equal([]simulation.Element{
			namedElement("a"), namedElement("b"),
		}))
	})

	It("should panic when a name is registered twice", func() {
		s.RegisterElement(namedElement("a"), simulation.Lifecycle{})

		Expect(func() {
			s.RegisterElement(namedElement("a"), simulation.Lifecycle{})
		}).To(PanicWith("simulation: element a already registered"))
	})

	It("should call the lifecycle callbacks in order", func() {
		var log []string
		s.RegisterElement(namedElement("a"), recordingLifecycle("a", &log))
		s.RegisterElement(namedElement("b"), recordingLifecycle("b", &log))

		Expect(s.Run(context.Background())).To(Succeed())

		perReplication := []string{
			"a:BeforeReplication", "b:BeforeReplication",
			"a:Initialize", "b:Initialize",
			"a:WarmUp", "b:WarmUp",
			"a:AfterReplication", "b:AfterReplication",
		}
		expected := []string{"a:BeforeExperiment", "b:BeforeExperiment"}
		expected = append(expected, perReplication...)
		expected = append(expected, perReplication...)
		expected = append(expected, "a:AfterExperiment", "b:AfterExperiment")

		Expect(log).To(Equal(expected))
	})

	It("should end every replication at the replication length", func() {
		var warmUpAt []timing.VTimeInSec
		s.RegisterElement(namedElement("a"), simulation.Lifecycle{
			WarmUp: func() {
				warmUpAt = append(warmUpAt, s.Executive().Now())
			},
		})

		Expect(s.Run(context.Background())).To(Succeed())

		Expect(warmUpAt).To(Equal([]timing.VTimeInSec{4, 4}))
		Expect(s.Results()).To(HaveLen(2))
		for i, r := range s.Results() {
			Expect(r.Replication).To(Equal(i))
			Expect(r.EndTime).To(Equal(10.0))
			Expect(r.EndReason).To(Equal(timing.EndReasonEndOfReplication))
		}
	})

	It("should terminate the live processes after each replication", func() {
		var started, terminated int
		s.RegisterElement(namedElement("source"), simulation.Lifecycle{
			Initialize: func() {
				s.Processes().Start("forever", 0, func(p *process.Process) {
					started++
					defer func() { terminated++ }()

					for {
						p.Delay(1, timing.DefaultPriority)
					}
				})
			},
		})

		Expect(s.Run(context.Background())).To(Succeed())

		Expect(started).To(Equal(2))
		Expect(terminated).To(Equal(2))
		Expect(s.Processes().NumLive()).To(Equal(0))
	})

	It("should invoke the replication hooks", func() {
		var events []string
		s.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
			switch ctx.Pos {
			case simulation.HookPosReplicationStart:
				events = append(events, fmt.Sprintf("start %d", ctx.Item.(int)))
			case simulation.HookPosReplicationEnd:
				r := ctx.Item.(simulation.ReplicationResult)
				events = append(events,
					fmt.Sprintf("end %d @ %v", r.Replication, r.EndTime))
			}
		}))

		Expect(s.Run(context.Background())).To(Succeed())

		Expect(events).To(Equal([]string{
			"start 0", "end 0 @ 10", "start 1", "end 1 @ 10",
		}))
	})

	It("should give each replication reproducible random draws", func() {
		draws := func() []float64 {
			sim := simulation.MakeBuilder().WithExperiment(exp).Build()

			var out []float64
			sim.RegisterElement(namedElement("arrivals"), simulation.Lifecycle{
				Initialize: func() {
					out = append(out, sim.Streams().For("arrivals").Float64())
				},
			})
			Expect(sim.Run(context.Background())).To(Succeed())

			return out
		}

		first := draws()
		second := draws()

		Expect(first).To(Equal(second))
		Expect(first[0]).NotTo(Equal(first[1]))
	})

	Context("when the experiment is invalid", func() {
		BeforeEach(func() {
			exp.NumReplications = 0
		})

		It("should not run", func() {
			var log []string
			s.RegisterElement(namedElement("a"), recordingLifecycle("a", &log))

			Expect(s.Run(context.Background())).To(HaveOccurred())
			Expect(log).To(BeEmpty())
		})
	})

	Context("when the context is cancelled", func() {
		BeforeEach(func() {
			exp.LengthOfReplication = 0
			exp.LengthOfWarmUp = 0
			exp.NumReplications = 3
		})

		It("should stop the running replication and skip the rest", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var log []string
			s.RegisterElement(namedElement("a"), recordingLifecycle("a", &log))
			s.RegisterElement(namedElement("source"), simulation.Lifecycle{
				Initialize: func() {
					s.Processes().Start("ticker", 0, func(p *process.Process) {
						for {
							p.Delay(1, timing.DefaultPriority)
							if p.Now() == 5 {
								cancel()
							}
						}
					})
				},
			})

			err := s.Run(ctx)

			Expect(err).To(MatchError(context.Canceled))
			Expect(s.Results()).To(HaveLen(1))
			Expect(s.Results()[0].EndReason).
				To(Equal(timing.EndReasonStopped))
			Expect(s.Results()[0].EndTime).To(BeNumerically(">=", 5))
			Expect(log).To(ContainElement("a:AfterExperiment"))
			Expect(s.Processes().NumLive()).To(Equal(0))
		})
	})

	Context("when a resource belongs to the model", func() {
		It("should restore the resource before every replication", func() {
			r := resource.MakeBuilder().
				WithModel(s).
				WithCapacity(2).
				Build("server")

			var busyAtStart, capacityAtStart []int
			s.RegisterElement(namedElement("customers"), simulation.Lifecycle{
				Initialize: func() {
					busyAtStart = append(busyAtStart, r.NumBusy())
					capacityAtStart = append(capacityAtStart, r.Capacity())

					s.Processes().Start("holder", 1, func(p *process.Process) {
						r.Seize(p, 1, 0)
						r.ChangeCapacity(resource.NewCapacityChangeNotice(
							5, timing.VTimeInSec(1e9), 0))
						p.Delay(100, timing.DefaultPriority)
					})
				},
			})

			Expect(s.Run(context.Background())).To(Succeed())

			Expect(busyAtStart).To(Equal([]int{0, 0}))
			Expect(capacityAtStart).To(Equal([]int{2, 2}))
			Expect(r.Capacity()).To(Equal(5))
			Expect(r.NumBusy()).To(Equal(0))
			Expect(r.PendingNotice()).To(BeNil())
		})
	})
})
