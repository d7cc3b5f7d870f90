// Package rvs defines how the kernel obtains random input values. The kernel
// only depends on the Generator interface; the distributions here are the
// minimum needed to drive models and tests.
package rvs

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
)

// A Generator produces values, typically durations or amounts.
type Generator interface {
	Value() float64
}

// Constant always returns the same value.
type Constant float64

// Value returns the constant.
func (c Constant) Value() float64 {
	return float64(c)
}

// Func adapts a function into a Generator.
type Func func() float64

// Value calls the function.
func (f Func) Value() float64 {
	return f()
}

// Exponential draws exponentially distributed values with the given mean.
type Exponential struct {
	Mean   float64
	Stream *rand.Rand
}

// Value draws one value.
func (e Exponential) Value() float64 {
	return e.Stream.ExpFloat64() * e.Mean
}

// Uniform draws values uniformly from [Min, Max).
type Uniform struct {
	Min, Max float64
	Stream   *rand.Rand
}

// Value draws one value.
func (u Uniform) Value() float64 {
	return u.Min + u.Stream.Float64()*(u.Max-u.Min)
}

// Amount turns a sampled value into a non-negative resource amount.
func Amount(g Generator) int {
	v := g.Value()
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		panic(fmt.Sprintf("rvs: cannot use %v as an amount", v))
	}

	return int(math.Round(v))
}

// Streams hands out deterministic random streams, one per named subsystem.
// Each stream is seeded from the base seed, the subsystem name and the
// replication number, so that adding a subsystem does not perturb the others
// and every replication draws from a different but reproducible sequence.
//
// Streams is not thread-safe. It is used from the event loop only.
type Streams struct {
	baseSeed    int64
	replication int
	streams     map[string]*rand.Rand
	order       []string
}

// NewStreams creates a stream registry.
func NewStreams(baseSeed int64) *Streams {
	return &Streams{
		baseSeed: baseSeed,
		streams:  make(map[string]*rand.Rand),
	}
}

// For returns the stream of a subsystem. The same name always returns the same
// *rand.Rand within a replication.
func (s *Streams) For(name string) *rand.Rand {
	if r, ok := s.streams[name]; ok {
		return r
	}

	r := rand.New(rand.NewSource(s.seedFor(name)))
	s.streams[name] = r
	s.order = append(s.order, name)

	return r
}

// Replication returns the replication the streams are positioned at.
func (s *Streams) Replication() int {
	return s.replication
}

// AdvanceToReplication reseeds every stream for the given replication. The
// *rand.Rand values handed out earlier stay valid.
func (s *Streams) AdvanceToReplication(replication int) {
	s.replication = replication

	for _, name := range s.order {
		s.streams[name].Seed(s.seedFor(name))
	}
}

// ResetStartStream moves every stream back to the first replication.
func (s *Streams) ResetStartStream() {
	s.AdvanceToReplication(0)
}

func (s *Streams) seedFor(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))

	return s.baseSeed ^ int64(h.Sum64()) ^ int64(s.replication)*0x5DEECE66D
}
