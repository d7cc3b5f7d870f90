package resource

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/id"
	"github.com/sarchlab/procsim/sim/process"
	"github.com/sarchlab/procsim/sim/timing"
)

var _ = Describe("Resource", func() {
	var (
		mockCtrl *gomock.Controller
		exec     *timing.Executive
		manager  *process.Manager
		r        *Resource
		alice    *process.Process
		bob      *process.Process
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		exec = timing.NewExecutive()
		manager = process.NewManager(exec, id.NewAllocator(), nil)
		r = MakeBuilder().
			WithScheduler(exec).
			WithCapacity(3).
			BuildResource("machine")
		alice = manager.NewProcess("alice", func(*process.Process) {})
		bob = manager.NewProcess("bob", func(*process.Process) {})
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start idle with all units available", func() {
		Expect(r.State()).To(Equal(StateIdle))
		Expect(r.IsIdle()).To(BeTrue())
		Expect(r.NumAvailableUnits()).To(Equal(3))
		Expect(r.HasAvailableUnits()).To(BeTrue())
		Expect(r.CanAllocate(3)).To(BeTrue())
		Expect(r.CanAllocate(4)).To(BeFalse())
		Expect(r.CanAllocate(0)).To(BeFalse())
	})

	It("should allocate and deallocate", func() {
		a := r.Allocate(alice, 2, nil)

		Expect(a.Entity()).To(BeIdenticalTo(alice))
		Expect(a.Resource()).To(BeIdenticalTo(r))
		Expect(a.Amount()).To(Equal(2))
		Expect(a.IsAllocated()).To(BeTrue())
		Expect(a.Queue()).To(BeNil())
		Expect(r.NumBusy()).To(Equal(2))
		Expect(r.State()).To(Equal(StateBusy))
		Expect(r.Utilization()).To(BeNumerically("~", 2.0/3.0))
		Expect(r.Allocations(alice)).To(ConsistOf(a))
		Expect(alice.Allocations()).To(HaveLen(1))

		r.Deallocate(a)

		Expect(a.IsDeallocated()).To(BeTrue())
		Expect(a.TimeDeallocated()).To(Equal(timing.VTimeInSec(0)))
		Expect(r.NumBusy()).To(Equal(0))
		Expect(r.State()).To(Equal(StateIdle))
		Expect(r.IsUsing(alice)).To(BeFalse())
		Expect(alice.HasAllocations()).To(BeFalse())
		Expect(r.NumTimesSeized()).To(Equal(1))
		Expect(r.NumTimesReleased()).To(Equal(1))
	})

	It("should stay busy until the last unit is released", func() {
		a := r.Allocate(alice, 1, nil)
		b := r.Allocate(bob, 1, nil)

		r.Deallocate(a)
		Expect(r.State()).To(Equal(StateBusy))

		b.Release()
		Expect(r.State()).To(Equal(StateIdle))
	})

	It("should panic when allocating more than available", func() {
		r.Allocate(alice, 2, nil)

		Expect(func() { r.Allocate(bob, 2, nil) }).To(Panic())
		Expect(func() { r.Allocate(bob, 0, nil) }).To(Panic())
		Expect(r.NumBusy()).To(Equal(2))
	})

	It("should panic when deallocating twice", func() {
		a := r.Allocate(alice, 1, nil)
		r.Deallocate(a)

		Expect(func() { r.Deallocate(a) }).To(Panic())
	})

	It("should panic when deallocating an allocation of another resource", func() {
		other := MakeBuilder().WithScheduler(exec).BuildResource("other")
		a := other.Allocate(alice, 1, nil)

		Expect(func() { r.Deallocate(a) }).To(Panic())
	})

	It("should release all the allocations of an entity", func() {
		r.Allocate(alice, 1, nil)
		r.Allocate(alice, 1, nil)
		r.Allocate(bob, 1, nil)

		r.ReleaseAll(alice)

		Expect(r.NumBusy()).To(Equal(1))
		Expect(r.NumAllocations()).To(Equal(1))
		Expect(r.IsUsing(alice)).To(BeFalse())
		Expect(r.IsUsing(bob)).To(BeTrue())
	})

	It("should notify listeners in registration order", func() {
		first := NewMockAllocationListener(mockCtrl)
		second := NewMockAllocationListener(mockCtrl)
		r.AddAllocationListener(first)
		r.AddAllocationListener(second)

		gomock.InOrder(
			first.EXPECT().Allocated(gomock.Any()),
			second.EXPECT().Allocated(gomock.Any()),
			first.EXPECT().Deallocated(gomock.Any()),
			second.EXPECT().Deallocated(gomock.Any()),
		)

		a := r.Allocate(alice, 1, nil)
		r.Deallocate(a)
	})

	It("should not accept the same listener twice", func() {
		l := NewMockAllocationListener(mockCtrl)
		r.AddAllocationListener(l)

		Expect(func() { r.AddAllocationListener(l) }).To(Panic())

		r.RemoveAllocationListener(l)
		r.Allocate(alice, 1, nil)
	})

	It("should accumulate time in each state", func() {
		var a *Allocation

		exec.ScheduleAt(2, timing.DefaultPriority, func(*timing.Event) {
			a = r.Allocate(alice, 1, nil)
		}, nil)
		exec.ScheduleAt(5, timing.DefaultPriority, func(*timing.Event) {
			r.Deallocate(a)
		}, nil)
		exec.ScheduleAt(6, timing.DefaultPriority, func(*timing.Event) {}, nil)

		Expect(exec.Run()).To(Succeed())

		Expect(r.TimeInState(StateIdle)).To(Equal(timing.VTimeInSec(3)))
		Expect(r.TimeInState(StateBusy)).To(Equal(timing.VTimeInSec(3)))
		Expect(r.TimeInState(StateInactive)).To(Equal(timing.VTimeInSec(0)))
	})

	It("should report state changes and utilization to hooks", func() {
		var changes []StateChange
		var busy []int
		r.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
			switch ctx.Pos {
			case HookPosStateChange:
				changes = append(changes, ctx.Item.(StateChange))
			case HookPosUtilization:
				busy = append(busy, ctx.Item.(int))
			}
		}))

		a := r.Allocate(alice, 2, nil)
		r.Deallocate(a)

		Expect(busy).To(Equal([]int{2, 0}))
		Expect(changes).To(Equal([]StateChange{
			{From: StateIdle, To: StateBusy},
			{From: StateBusy, To: StateIdle},
		}))
	})

	It("should be inactive without capacity", func() {
		empty := MakeBuilder().
			WithScheduler(exec).
			WithCapacity(0).
			BuildResource("empty")

		Expect(empty.IsInactive()).To(BeTrue())
		Expect(empty.IsIdle()).To(BeFalse())
		Expect(empty.Utilization()).To(Equal(0.0))
		Expect(empty.NumAvailableUnits()).To(Equal(0))
	})

	It("should restore the initial capacity on reset", func() {
		r.Allocate(alice, 2, nil)
		r.setCapacity(2)
		r.SetInitialCapacity(5)

		r.Reset()

		Expect(r.Capacity()).To(Equal(5))
		Expect(r.NumBusy()).To(Equal(0))
		Expect(r.NumAllocations()).To(Equal(0))
		Expect(alice.HasAllocations()).To(BeFalse())
		Expect(r.State()).To(Equal(StateIdle))
	})
})
