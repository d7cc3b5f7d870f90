package process

import (
	"github.com/sarchlab/procsim/sim/timing"
)

// delayResumer wakes the process with a timer event.
type delayResumer struct {
	duration timing.VTimeInSec
	priority int
	event    *timing.Event
}

func (d *delayResumer) Arm(p *Process) {
	d.event = p.manager.sched.Schedule(d.duration, d.priority,
		func(*timing.Event) {
			d.event = nil
			p.Resume(nil)
		}, nil)
	d.event.SetOwner(p)
	d.event.SetName("Delay " + p.name)
}

func (d *delayResumer) Disarm(p *Process) {
	p.manager.sched.Cancel(d.event)
	d.event = nil
}

// ResumeTime returns when the delay ends.
func (d *delayResumer) ResumeTime() timing.VTimeInSec {
	if d.event == nil {
		return -1
	}

	return d.event.Time()
}
