package datarecording

import (
	"github.com/sarchlab/procsim/sim/hooking"
	"github.com/sarchlab/procsim/sim/simulation"
)

type replicationEntry struct {
	Simulation    string
	Experiment    string
	Replication   int
	EndTime       float64
	EndReason     string
	NumDispatched uint64
}

// ReplicationRecorder is a simulation hook that writes one row per finished
// replication.
type ReplicationRecorder struct {
	recorder DataRecorder
}

// NewReplicationRecorder creates the replication table.
func NewReplicationRecorder(recorder DataRecorder) *ReplicationRecorder {
	recorder.CreateTable("replication", replicationEntry{})

	return &ReplicationRecorder{recorder: recorder}
}

// Func records the end of a replication.
func (h *ReplicationRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != simulation.HookPosReplicationEnd {
		return
	}

	sim := ctx.Domain.(*simulation.Simulation)
	result := ctx.Item.(simulation.ReplicationResult)

	h.recorder.InsertData("replication", replicationEntry{
		Simulation:    sim.ID(),
		Experiment:    sim.Name(),
		Replication:   result.Replication,
		EndTime:       result.EndTime,
		EndReason:     result.EndReason.String(),
		NumDispatched: result.NumDispatched,
	})
	h.recorder.Flush()
}
