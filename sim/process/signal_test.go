package process

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/id"
	"github.com/sarchlab/procsim/sim/timing"
)

var _ = Describe("Signal", func() {
	var (
		exec    *timing.Executive
		manager *Manager
		signal  *Signal
		woken   []string
	)

	waitAt := func(name string, priority int) *Process {
		return manager.Start(name, 0, func(p *Process) {
			msg := p.WaitFor(signal, priority)
			woken = append(woken, name+":"+msg.(string))
		})
	}

	BeforeEach(func() {
		exec = timing.NewExecutive()
		manager = NewManager(exec, id.NewAllocator(), nil)
		signal = NewSignal("go")
		woken = nil
	})

	AfterEach(func() {
		manager.TerminateAll()
	})

	It("should wake every waiter in priority order", func() {
		waitAt("low", 5)
		waitAt("high", 1)
		waitAt("high2", 1)

		exec.Schedule(1, timing.DefaultPriority, func(*timing.Event) {
			Expect(signal.NumWaiting()).To(Equal(3))
			Expect(signal.Signal("now")).To(Equal(3))
			Expect(signal.NumWaiting()).To(Equal(0))
			Expect(woken).To(BeEmpty())
		}, nil)

		Expect(exec.Run()).To(Succeed())

		Expect(woken).To(Equal([]string{"high:now", "high2:now", "low:now"}))
	})

	It("should wake only the first waiter", func() {
		waitAt("a", 2)
		b := waitAt("b", 2)

		exec.Schedule(1, timing.DefaultPriority, func(*timing.Event) {
			Expect(signal.SignalFirst("x")).To(BeTrue())
		}, nil)

		Expect(exec.Run()).To(Succeed())

		Expect(woken).To(Equal([]string{"a:x"}))
		Expect(signal.IsWaiting(b)).To(BeTrue())
	})

	It("should report the signal time to hooks", func() {
		var ctxs []hooking.HookCtx
		signal.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
			ctxs = append(ctxs, ctx)
		}))
		waitAt("a", 1)

		exec.Schedule(3, timing.DefaultPriority, func(*timing.Event) {
			signal.Signal("x")
		}, nil)

		Expect(exec.Run()).To(Succeed())

		Expect(ctxs).To(HaveLen(1))
		Expect(ctxs[0].Pos).To(Equal(HookPosSignal))
		Expect(ctxs[0].Now).To(Equal(3.0))
		Expect(ctxs[0].Item).To(Equal(1))
	})

	It("should report nothing to wake", func() {
		Expect(signal.SignalFirst(nil)).To(BeFalse())
		Expect(signal.SignalN(3, nil)).To(Equal(0))
	})

	It("should stop waiting when the waiter is terminated", func() {
		p := waitAt("a", 1)

		exec.Schedule(1, timing.DefaultPriority, func(*timing.Event) {
			p.Terminate()
			Expect(signal.NumWaiting()).To(Equal(0))
		}, nil)

		Expect(exec.Run()).To(Succeed())

		Expect(p.State()).To(Equal(StateTerminated))
		Expect(woken).To(BeEmpty())
	})

	It("should drop a scheduled wake-up of a terminated waiter", func() {
		p := waitAt("a", 1)

		exec.Schedule(1, timing.DefaultPriority, func(*timing.Event) {
			signal.Signal("x")
			Expect(p.HasPendingResume()).To(BeTrue())
			p.Terminate()
		}, nil)

		Expect(exec.Run()).To(Succeed())

		Expect(woken).To(BeEmpty())
		Expect(p.State()).To(Equal(StateTerminated))
	})
})
