package graph

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dshills/hypergraph-go/graph/emit"
	"github.com/dshills/hypergraph-go/graph/store"
	"github.com/google/uuid"
)

// runSession is the mutable state threaded through one Run/Map call's
// execution: the graph and its versioned state, the event
// stream, and whatever concurrency primitive the owning Runner configured.
// A runSession is never reused across calls.
type runSession struct {
	runner *Runner
	graph  *Graph
	state  *RunState

	runID        string
	workflowID   string
	parentSpanID string

	dispatcher *emit.Dispatcher
	runLog     *emit.RunLogCollector

	errorHandling ErrorHandling
	maxIterations int

	// leafSem caps concurrent leaf (function/interrupt) executions; nil on
	// a sequential runner, set by initConcurrency otherwise.
	leafSem weightedSemaphore

	// controllers maps a node name to the gates whose control edges target
	// it, computed once per run from the (fixed) active edge set.
	controllers map[string][]string

	// stepIndex is the monotonically increasing global step counter the
	// checkpointer orders records by.
	stepIndex uint64

	// pendingSteps buffers step records under DurabilityExit, flushed once
	// at run end; asyncWG tracks in-flight DurabilityAsync writes so the
	// run doesn't report completion before they land.
	mu           sync.Mutex
	pendingSteps []store.StepRecord
	asyncWG      sync.WaitGroup
}

// weightedSemaphore is the subset of *semaphore.Weighted the scheduler
// needs; satisfied by scheduler_concurrent.go's real semaphore and left
// nil (meaning "uncapped") on a sequential runner.
type weightedSemaphore interface {
	Acquire(ctx context.Context, n int64) error
	Release(n int64)
}

func (rs *runSession) now() time.Time           { return time.Now() }
func (rs *runSession) since(t time.Time) time.Duration { return time.Since(t) }

// emit publishes one event for this run, stamping the run/graph/timestamp
// fields every variant carries.
func (rs *runSession) emit(variant emit.Variant, nodeName, spanID string, fields map[string]any) {
	rs.dispatcher.Dispatch(emit.Event{
		Variant:      variant,
		RunID:        rs.runID,
		SpanID:       spanID,
		ParentSpanID: rs.parentSpanID,
		Timestamp:    rs.now(),
		NodeName:     nodeName,
		GraphName:    rs.graph.Name(),
		Fields:       fields,
	})
}

// execute runs the superstep loop to completion, producing the run's final
// RunResult. A *PauseSignal surfacing from any node short-
// circuits the loop into a Paused result rather than propagating as a Go
// error, since pausing is normal control flow, not failure.
func (rs *runSession) execute(ctx context.Context) (*RunResult, error) {
	rs.controllers = buildControllers(rs.graph.Edges())

	rs.emit(emit.RunStart, "", rs.runID, map[string]any{
		"graph_name":  rs.graph.Name(),
		"workflow_id": rs.workflowID,
	})

	superstep := 0
	for {
		ready := rs.readyNodes()
		if len(ready) == 0 {
			break
		}
		superstep++
		if rs.maxIterations > 0 && superstep > rs.maxIterations {
			return rs.finish(ctx, &InfiniteLoopError{MaxIterations: rs.maxIterations})
		}
		rs.emit(emit.SuperstepStart, "", "", map[string]any{"superstep": superstep})
		rs.runner.recordSuperstep(rs.graph.Name())

		outcomes, pause, err := rs.runBatch(ctx, superstep, ready)
		if pause != nil {
			return rs.finishPaused(ctx, pause)
		}
		if err != nil {
			// runBatch only ever returns a non-nil err in raise mode; in
			// continue mode node failures are folded into outcomes instead,
			// merge() skips them, and the run ends as failed once the
			// superstep's successful outputs are merged.
			return rs.finish(ctx, err)
		}
		rs.merge(ready, outcomes)
		for _, name := range ready {
			if out, ok := outcomes[name]; ok && out.err != nil {
				return rs.finish(ctx, out.err)
			}
		}
	}

	return rs.finish(ctx, nil)
}

// readyNodes returns the active node names eligible to run this superstep,
// in stable sorted order so a sequential runner's execution
// order is deterministic.
func (rs *runSession) readyNodes() []string {
	var ready []string
	for _, name := range rs.graph.NodeNames() {
		if rs.isReady(name) {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)
	return ready
}

func (rs *runSession) isReady(name string) bool {
	if rs.gateExcluded(name) {
		return false
	}
	n, ok := rs.graph.Node(name)
	if !ok {
		return false
	}
	if !rs.inputsAvailable(n) {
		return false
	}
	if !rs.waitForSatisfied(n) {
		return false
	}
	return rs.isStale(n)
}

// inputsAvailable reports whether every declared input of n currently
// resolves to a value, via state, the binding table, or a signature
// default — without raising on a genuinely missing one, since
// that is a legitimate "not ready yet" rather than a run-time error at
// this stage of evaluation.
func (rs *runSession) inputsAvailable(n Node) bool {
	for _, p := range n.Inputs() {
		if _, ok := rs.state.Get(p); ok {
			continue
		}
		if _, ok := rs.graph.Bindings()[p]; ok {
			continue
		}
		if n.HasDefault(p) {
			continue
		}
		return false
	}
	return true
}

// waitForSatisfied reports whether every ordering-only input n declares
// has been produced at least once since n's last execution: the consumed-version bookkeeping used for regular inputs
// doubles as the freshness check here, since ConsumedVersion defaults to
// 0 for a parameter never recorded as consumed.
func (rs *runSession) waitForSatisfied(n Node) bool {
	for _, w := range n.WaitFor() {
		if rs.state.Version(w) <= rs.state.ConsumedVersion(n.Name(), w) {
			return false
		}
	}
	return true
}

// isStale reports whether n needs to (re-)execute: it has never run, or
// some input/wait-for value it last consumed has since changed version.
// A node all of whose inputs are bound/defaulted (version
// always 0) only ever satisfies this on its first execution, matching the
// "re-executes only when an input changes" invariant.
func (rs *runSession) isStale(n Node) bool {
	if !rs.state.HasRun(n.Name()) {
		return true
	}
	for _, p := range n.Inputs() {
		if rs.state.Version(p) != rs.state.ConsumedVersion(n.Name(), p) {
			return true
		}
	}
	for _, w := range n.WaitFor() {
		if rs.state.Version(w) != rs.state.ConsumedVersion(n.Name(), w) {
			return true
		}
	}
	return false
}

// gateExcluded reports whether every gate controlling name's control edge
// has already decided, and none of their decisions route to name. An undecided controlling gate never excludes its targets; a
// node with no controlling gate is never excluded.
func (rs *runSession) gateExcluded(name string) bool {
	gates := rs.controllers[name]
	if len(gates) == 0 {
		return false
	}
	for _, gate := range gates {
		decision, ok := rs.state.RoutingDecision(gate)
		if !ok || decisionIncludes(decision, name) {
			return false
		}
	}
	return true
}

// buildControllers inverts the active control-edge set into node ->
// controlling gate names, computed once per run since the edge set never
// changes mid-run.
func buildControllers(edges []Edge) map[string][]string {
	out := map[string][]string{}
	for _, e := range edges {
		if e.Kind == EdgeControl {
			out[e.To] = append(out[e.To], e.From)
		}
	}
	return out
}

// runBatch executes every ready node for one superstep. On a sequential
// runner it runs them one at a time, in name order; a concurrent runner
// hands the batch to runBatchConcurrent. It returns the first pause signal encountered, aborting the
// batch immediately, or, in raise mode, the first node error; in continue
// mode every node in the batch still runs and failures are folded into the
// returned outcome map as nil-outcome, error-recorded entries.
func (rs *runSession) runBatch(ctx context.Context, superstep int, ready []string) (map[string]nodeOutcome, *PauseSignal, error) {
	if rs.runner.concurrent {
		return rs.runBatchConcurrent(ctx, superstep, ready)
	}

	outcomes := make(map[string]nodeOutcome, len(ready))
	for _, name := range ready {
		n, _ := rs.graph.Node(name)
		out, pause := rs.runOne(ctx, superstep, name, n)
		outcomes[name] = out
		if pause != nil {
			return outcomes, pause, nil
		}
		if out.err != nil && rs.errorHandling == ErrorRaise {
			return outcomes, nil, out.err
		}
	}
	return outcomes, nil, nil
}

// runOne executes a single ready node end to end: start/end/error events,
// checkpoint write, and metric recording. Shared by the sequential and
// concurrent batch runners so both paths observe a node identically.
func (rs *runSession) runOne(ctx context.Context, superstep int, name string, n Node) (nodeOutcome, *PauseSignal) {
	spanID := uuid.NewString()
	rs.emit(emit.NodeStart, name, spanID, nil)

	out := rs.executeNode(ctx, n)

	if out.err != nil {
		var pause *PauseSignal
		if errors.As(out.err, &pause) {
			rs.writeStep(ctx, superstep, name, n, out, false)
			return out, pause
		}
		rs.emit(emit.NodeError, name, spanID, map[string]any{
			"error":       out.err.Error(),
			"duration_ms": float64(out.duration) / float64(time.Millisecond),
		})
		rs.writeStep(ctx, superstep, name, n, out, false)
		rs.runner.recordNodeLatency(name, out.duration, "failed")
		return out, nil
	}

	if out.cached {
		rs.emit(emit.CacheHit, name, spanID, map[string]any{"cache_key": n.DefinitionHash()})
	}
	rs.emit(emit.NodeEnd, name, spanID, map[string]any{
		"cached":      out.cached,
		"duration_ms": float64(out.duration) / float64(time.Millisecond),
	})
	if out.hasDecision && isGateNode(n) {
		rs.emit(emit.RouteDecision, name, spanID, map[string]any{"decision": out.decision})
		rs.runner.recordRoutingDecision(name, decisionLabel(out.decision))
	}
	rs.writeStep(ctx, superstep, name, n, out, true)
	rs.runner.recordNodeLatency(name, out.duration, statusLabel(out))
	return out, nil
}

// merge applies a completed superstep's outcomes to RunState in one pass,
// after every ready node has run. Nodes that errored in continue mode have no
// outcome worth merging beyond their execution record.
func (rs *runSession) merge(ready []string, outcomes map[string]nodeOutcome) {
	for _, name := range ready {
		out, ok := outcomes[name]
		if !ok || out.err != nil {
			continue
		}
		for k, v := range out.outputs {
			rs.state.Set(k, v)
		}
		if out.hasDecision {
			rs.state.SetRoutingDecision(name, out.decision)
		}
		rs.state.RecordExecution(name, out.consumedVersions, out.outputs)
	}
}

func statusLabel(out nodeOutcome) string {
	if out.cached {
		return "cached"
	}
	return "completed"
}

func decisionLabel(decision any) string {
	switch d := decision.(type) {
	case terminalSentinel:
		return "END"
	case string:
		return d
	case []string:
		if len(d) == 0 {
			return ""
		}
		return d[0]
	default:
		return ""
	}
}

// finish builds the terminal RunResult for a non-paused run: Completed
// when err is nil, Failed otherwise. State already reflects every merged
// superstep, including partial progress from a continue-mode batch that
// had some node failures, so Values needs no separate seeding here.
func (rs *runSession) finish(ctx context.Context, err error) (*RunResult, error) {
	rs.flushCheckpoint(ctx)

	if err != nil {
		rs.emit(emit.RunEnd, "", rs.runID, map[string]any{"status": "failed", "error": err.Error()})
		if rs.errorHandling == ErrorRaise {
			return nil, err
		}
	}

	status := StatusCompleted
	var resultErr error
	if err != nil {
		status = StatusFailed
		resultErr = err
	}

	values := rs.selectValues()
	if err == nil {
		rs.emit(emit.RunEnd, "", rs.runID, map[string]any{"status": "completed"})
	}

	return &RunResult{
		Status:     status,
		Values:     values,
		RunID:      rs.runID,
		WorkflowID: rs.workflowID,
		Error:      resultErr,
	}, nil
}

func (rs *runSession) finishPaused(ctx context.Context, pause *PauseSignal) (*RunResult, error) {
	rs.flushCheckpoint(ctx)
	rs.emit(emit.RunEnd, "", rs.runID, map[string]any{"status": "paused", "node": pause.Info.NodeName})
	return &RunResult{
		Status:     StatusPaused,
		Values:     rs.selectValues(),
		RunID:      rs.runID,
		WorkflowID: rs.workflowID,
		Pause:      &pause.Info,
	}, nil
}

// selectValues narrows the final state down to the graph's selected (or
// default) outputs.
func (rs *runSession) selectValues() map[string]any {
	names := rs.graph.SelectedOutputs()
	if len(names) == 0 {
		names = rs.graph.outputs()
	}
	out := make(map[string]any, len(names))
	for _, name := range names {
		if v, ok := rs.state.Get(name); ok {
			out[name] = v
		}
	}
	return out
}
