package datarecording

import (
	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/resource"
)

// A ReplicationTeller tells which replication is running.
type ReplicationTeller interface {
	Replication() int
}

type allocationEntry struct {
	Replication   int
	Resource      string
	Entity        string
	Amount        int
	AllocatedAt   float64
	DeallocatedAt float64
}

type stateEntry struct {
	Replication int
	Resource    string
	Time        float64
	FromState   string
	ToState     string
	Duration    float64
}

type capacityEntry struct {
	Replication int
	Resource    string
	Time        float64
	OldCapacity int
	NewCapacity int
}

// ResourceRecorder is a hook that records allocations, state changes and
// capacity changes of the resources it is attached to.
type ResourceRecorder struct {
	recorder    DataRecorder
	replication ReplicationTeller
}

// NewResourceRecorder creates the allocation, resource_state and
// resource_capacity tables.
func NewResourceRecorder(
	recorder DataRecorder,
	replication ReplicationTeller,
) *ResourceRecorder {
	recorder.CreateTable("allocation", allocationEntry{})
	recorder.CreateTable("resource_state", stateEntry{})
	recorder.CreateTable("resource_capacity", capacityEntry{})

	return &ResourceRecorder{
		recorder:    recorder,
		replication: replication,
	}
}

// Func records the hook context.
func (h *ResourceRecorder) Func(ctx hooking.HookCtx) {
	named, ok := ctx.Domain.(interface{ Name() string })
	if !ok {
		return
	}

	rep := 0
	if h.replication != nil {
		rep = h.replication.Replication()
	}

	switch ctx.Pos {
	case resource.HookPosDeallocate:
		a := ctx.Item.(*resource.Allocation)
		h.recorder.InsertData("allocation", allocationEntry{
			Replication:   rep,
			Resource:      named.Name(),
			Entity:        a.Entity().Name(),
			Amount:        a.Amount(),
			AllocatedAt:   a.TimeAllocated(),
			DeallocatedAt: a.TimeDeallocated(),
		})
	case resource.HookPosStateChange:
		change := ctx.Item.(resource.StateChange)
		h.recorder.InsertData("resource_state", stateEntry{
			Replication: rep,
			Resource:    named.Name(),
			Time:        ctx.Now,
			FromState:   change.From.String(),
			ToState:     change.To.String(),
			Duration:    change.Duration,
		})
	case resource.HookPosCapacityChange:
		h.recorder.InsertData("resource_capacity", capacityEntry{
			Replication: rep,
			Resource:    named.Name(),
			Time:        ctx.Now,
			OldCapacity: ctx.Detail.(int),
			NewCapacity: ctx.Item.(int),
		})
	}
}
