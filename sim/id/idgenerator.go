// Package id provides the identifier allocator owned by a simulation context.
package id

import (
	"strconv"
	"sync/atomic"
)

// An Allocator hands out identifiers that are unique within one simulation.
//
// Every simulation owns its own Allocator. Nothing in procsim reads IDs from a
// package-level counter, so two simulations built in the same program (or two
// runs of the same program) produce the same sequence of IDs.
type Allocator interface {
	// Next returns the next numeric identifier. The first one is 1.
	Next() uint64

	// Generate returns the next identifier formatted as a string.
	Generate() string

	// Reset rewinds the allocator so that the next ID is 1 again.
	Reset()
}

// NewAllocator returns a sequential Allocator.
func NewAllocator() Allocator {
	return &sequentialAllocator{}
}

// NewPrefixedAllocator returns a sequential Allocator whose string IDs carry a
// prefix, e.g. "entity-1".
func NewPrefixedAllocator(prefix string) Allocator {
	return &sequentialAllocator{prefix: prefix}
}

type sequentialAllocator struct {
	prefix string
	nextID uint64
}

func (a *sequentialAllocator) Next() uint64 {
	return atomic.AddUint64(&a.nextID, 1)
}

func (a *sequentialAllocator) Generate() string {
	id := strconv.FormatUint(a.Next(), 10)

	if a.prefix == "" {
		return id
	}

	return a.prefix + "-" + id
}

func (a *sequentialAllocator) Reset() {
	atomic.StoreUint64(&a.nextID, 0)
}
