package graph

import (
	"context"
	"time"

	"github.com/dshills/hypergraph-go/graph/store"
)

// writeStep records one node's execution outcome as a StepRecord,
// honoring the runner's configured durability: sync blocks
// the superstep loop until the write lands, async hands it to a
// background goroutine gathered at run end, and exit buffers it in
// memory for a single bulk write at completion.
func (rs *runSession) writeStep(ctx context.Context, superstep int, name string, n Node, out nodeOutcome, completed bool) {
	if rs.runner.checkpointer == nil {
		return
	}

	rs.mu.Lock()
	rs.stepIndex++
	idx := rs.stepIndex
	rs.mu.Unlock()

	rec := store.StepRecord{
		RunID:                 rs.runID,
		Superstep:             uint32(superstep),
		Index:                 idx,
		NodeName:              name,
		NodeKind:              nodeKindForStore(n.Kind()),
		ConsumedInputVersions: out.consumedVersions,
		DurationMS:            float64(out.duration) / float64(time.Millisecond),
		Cached:                out.cached,
		Decision:              out.decision,
		CreatedAt:             rs.now(),
		NestedRunID:           out.nestedRunID,
	}
	if completed {
		rec.Status = store.StepCompleted
		rec.Values = out.outputs
	} else {
		rec.Status = store.StepFailed
		if out.err != nil {
			rec.Error = out.err.Error()
		}
	}

	switch rs.runner.checkpointPolicy.Durability {
	case store.DurabilityAsync:
		rs.asyncWG.Add(1)
		go func() {
			defer rs.asyncWG.Done()
			if err := rs.runner.checkpointer.SaveStep(ctx, rec); err != nil {
				rs.runner.logError("checkpoint save failed", err)
			}
		}()
	case store.DurabilityExit:
		rs.mu.Lock()
		rs.pendingSteps = append(rs.pendingSteps, rec)
		rs.mu.Unlock()
	default: // sync
		if err := rs.runner.checkpointer.SaveStep(ctx, rec); err != nil {
			rs.runner.logError("checkpoint save failed", err)
		}
	}
}

// flushCheckpoint waits out any in-flight async writes and bulk-writes
// whatever exit-durability buffered, so a run never reports completion
// before its step log is actually durable according to its policy.
func (rs *runSession) flushCheckpoint(ctx context.Context) {
	if rs.runner.checkpointer == nil {
		return
	}
	rs.asyncWG.Wait()

	rs.mu.Lock()
	pending := rs.pendingSteps
	rs.pendingSteps = nil
	rs.mu.Unlock()

	for _, rec := range pending {
		if err := rs.runner.checkpointer.SaveStep(ctx, rec); err != nil {
			rs.runner.logError("checkpoint save failed", err)
		}
	}
}
