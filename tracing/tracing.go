// Package tracing provides hooks that turn the events of processes and
// resources into summary statistics.
package tracing

import (
	"strings"

	"github.com/sarchlab/procsim/sim/process"
)

// A Filter decides if a process is traced.
type Filter func(p *process.Process) bool

// NamePrefix traces the processes whose name starts with prefix.
func NamePrefix(prefix string) Filter {
	return func(p *process.Process) bool {
		return strings.HasPrefix(p.Name(), prefix)
	}
}

// Tally accumulates observations.
type Tally struct {
	count uint64
	total float64
	max   float64
}

// Add records one observation.
func (t *Tally) Add(v float64) {
	if t.count == 0 || v > t.max {
		t.max = v
	}

	t.count++
	t.total += v
}

// Count returns the number of observations.
func (t *Tally) Count() uint64 {
	return t.count
}

// Total returns the sum of the observations.
func (t *Tally) Total() float64 {
	return t.total
}

// Max returns the largest observation, or 0 if there is none.
func (t *Tally) Max() float64 {
	return t.max
}

// Mean returns the average observation, or 0 if there is none.
func (t *Tally) Mean() float64 {
	if t.count == 0 {
		return 0
	}

	return t.total / float64(t.count)
}

// Reset drops every observation.
func (t *Tally) Reset() {
	*t = Tally{}
}
