package resource

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/procsim/sim/timing"
)

var _ = Describe("CapacitySchedule", func() {
	var (
		exec     *timing.Executive
		r        *ResourceWithQ
		schedule *CapacitySchedule
		seen     map[timing.VTimeInSec]int
	)

	sample := func(times ...timing.VTimeInSec) {
		for _, t := range times {
			t := t
			exec.ScheduleAt(t, timing.DefaultPriority+1, func(*timing.Event) {
				seen[t] = r.Capacity()
			}, nil)
		}
	}

	BeforeEach(func() {
		exec = timing.NewExecutive()
		r = MakeBuilder().WithScheduler(exec).WithCapacity(1).Build("desk")
		seen = make(map[timing.VTimeInSec]int)
	})

	It("should change the capacity at the start of each item", func() {
		schedule = NewCapacitySchedule("shifts", exec, 2, false)
		schedule.AddItem(3, 10)
		schedule.AddItem(0, 5)
		schedule.Attach(r)
		schedule.Start()
		sample(1, 3, 13, 30)

		Expect(exec.Run()).To(Succeed())

		Expect(seen).To(Equal(map[timing.VTimeInSec]int{
			1: 1, 3: 3, 13: 0, 30: 0,
		}))
		Expect(schedule.NumCycles()).To(Equal(1))
		Expect(schedule.IsRunning()).To(BeFalse())
	})

	It("should start over when repeating", func() {
		schedule = NewCapacitySchedule("shifts", exec, 0, true)
		schedule.AddItem(2, 4)
		schedule.AddItem(1, 4)
		schedule.Attach(r)
		schedule.Start()
		sample(1, 5, 9, 13)
		exec.ScheduleAt(14, timing.DefaultPriority, func(*timing.Event) {
			schedule.Stop()
		}, nil)

		Expect(exec.Run()).To(Succeed())

		Expect(seen).To(Equal(map[timing.VTimeInSec]int{
			1: 2, 5: 1, 9: 2, 13: 1,
		}))
		Expect(schedule.NumCycles()).To(Equal(2))
	})

	It("should reject invalid items", func() {
		schedule = NewCapacitySchedule("shifts", exec, 0, false)

		Expect(func() { schedule.AddItem(-1, 1) }).To(Panic())
		Expect(func() { schedule.AddItem(1, 0) }).To(Panic())
		Expect(func() { NewCapacitySchedule("bad", exec, -1, false) }).
			To(Panic())
	})

	It("should not attach a resource twice", func() {
		schedule = NewCapacitySchedule("shifts", exec, 0, false)
		schedule.Attach(r)

		Expect(func() { schedule.Attach(r) }).To(Panic())
	})
})
