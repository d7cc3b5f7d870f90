package process

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/id"
	"github.com/sarchlab/procsim/sim/timing"
)

var _ = Describe("HoldQueue", func() {
	var (
		exec    *timing.Executive
		manager *Manager
		queue   *HoldQueue
	)

	BeforeEach(func() {
		exec = timing.NewExecutive()
		manager = NewManager(exec, id.NewAllocator(), nil)
		queue = NewHoldQueue("parking")
	})

	AfterEach(func() {
		manager.TerminateAll()
	})

	It("should hold a process until it is removed", func() {
		var releasedAt timing.VTimeInSec
		var got any

		p := manager.Start("car", 0, func(p *Process) {
			got = p.HoldIn(queue, timing.DefaultPriority)
			releasedAt = p.Now()
		})

		exec.Schedule(7, timing.DefaultPriority, func(*timing.Event) {
			Expect(queue.Contains(p)).To(BeTrue())
			Expect(queue.Peek()).To(BeIdenticalTo(p))
			queue.Remove(p, timing.DefaultPriority, "green")
			Expect(queue.Len()).To(Equal(0))
			Expect(p.IsSuspended()).To(BeTrue())
		}, nil)

		Expect(exec.Run()).To(Succeed())

		Expect(releasedAt).To(Equal(timing.VTimeInSec(7)))
		Expect(got).To(Equal("green"))
		Expect(p.State()).To(Equal(StateCompleted))
	})

	It("should release every process in queue order", func() {
		var order []string
		for _, name := range []string{"a", "b", "c"} {
			name := name
			manager.Start(name, 0, func(p *Process) {
				p.HoldIn(queue, timing.DefaultPriority)
				order = append(order, name)
			})
		}

		exec.Schedule(1, timing.DefaultPriority, func(*timing.Event) {
			Expect(queue.Processes()).To(HaveLen(3))
			Expect(queue.RemoveAll(timing.DefaultPriority, nil)).To(Equal(3))
		}, nil)

		Expect(exec.Run()).To(Succeed())

		Expect(order).To(Equal([]string{"a", "b", "c"}))
	})

	It("should notify hooks on enter and exit", func() {
		var positions []*hooking.HookPos
		queue.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		manager.Start("a", 0, func(p *Process) {
			p.HoldIn(queue, timing.DefaultPriority)
		})
		exec.Schedule(1, timing.DefaultPriority, func(*timing.Event) {
			queue.RemoveFirst(timing.DefaultPriority, nil)
		}, nil)

		Expect(exec.Run()).To(Succeed())

		Expect(positions).To(Equal([]*hooking.HookPos{
			HookPosHoldEnter, HookPosHoldExit,
		}))
	})

	It("should panic when removing a process that is not held", func() {
		p := manager.NewProcess("stranger", func(p *Process) {})

		Expect(func() {
			queue.Remove(p, timing.DefaultPriority, nil)
		}).To(Panic())
		Expect(queue.RemoveFirst(timing.DefaultPriority, nil)).To(BeNil())
	})

	It("should leave the queue when the held process is terminated", func() {
		p := manager.Start("a", 0, func(p *Process) {
			p.HoldIn(queue, timing.DefaultPriority)
		})

		exec.Schedule(1, timing.DefaultPriority, func(*timing.Event) {
			p.Terminate()
		}, nil)

		Expect(exec.Run()).To(Succeed())

		Expect(queue.Len()).To(Equal(0))
		Expect(p.State()).To(Equal(StateTerminated))
	})
})
