package graph

// execRecord is one node's execution footprint within a run:
// consumed input versions at the time it ran, plus the outputs it produced.
// Kept per node name, overwritten on re-execution.
type execRecord struct {
	consumedVersions map[string]uint64
	outputs          map[string]any
}

// RunState is the versioned value store threaded through a single run.
// Every value write bumps a monotonic per-name version, but only
// when the new value actually differs from the old one (valuesEqual),
// which is what lets the ready-rule detect "this input didn't really
// change" and avoid re-running a downstream node for no reason.
type RunState struct {
	values           map[string]any
	versions         map[string]uint64
	executions       map[string]execRecord
	routingDecisions map[string]any
}

// newRunState returns an empty state seeded with initial values already at
// version 1 (the first superstep's run-supplied inputs and bindings count
// as already "produced").
func newRunState(seed map[string]any) *RunState {
	s := &RunState{
		values:           map[string]any{},
		versions:         map[string]uint64{},
		executions:       map[string]execRecord{},
		routingDecisions: map[string]any{},
	}
	for k, v := range seed {
		s.values[k] = v
		s.versions[k] = 1
	}
	return s
}

// Get returns the current value for name and whether it has ever been set.
func (s *RunState) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Version returns the current version for name, or 0 if it was never set.
func (s *RunState) Version(name string) uint64 { return s.versions[name] }

// Set updates name's value, bumping its version only if the value actually
// changed from what was stored before (identity-first, equality-fallback
// via valuesEqual). Returns whether the version was bumped.
func (s *RunState) Set(name string, value any) bool {
	old, existed := s.values[name]
	if existed && valuesEqual(old, value) {
		return false
	}
	s.values[name] = value
	s.versions[name]++
	return true
}

// RecordExecution stores the input versions a node consumed and the
// outputs it produced on this execution, replacing any prior record for
// the same node name.
func (s *RunState) RecordExecution(nodeName string, consumedVersions map[string]uint64, outputs map[string]any) {
	cv := make(map[string]uint64, len(consumedVersions))
	for k, v := range consumedVersions {
		cv[k] = v
	}
	s.executions[nodeName] = execRecord{consumedVersions: cv, outputs: outputs}
}

// HasRun reports whether nodeName has executed at least once in this run.
func (s *RunState) HasRun(nodeName string) bool {
	_, ok := s.executions[nodeName]
	return ok
}

// ConsumedVersion returns the version of input that nodeName consumed on
// its last execution, or 0 if it never ran or never consumed that input.
func (s *RunState) ConsumedVersion(nodeName, input string) uint64 {
	rec, ok := s.executions[nodeName]
	if !ok {
		return 0
	}
	return rec.consumedVersions[input]
}

// SetRoutingDecision records the decision a gate made on its last
// execution, consulted by the ready-rule to exclude nodes routed around.
func (s *RunState) SetRoutingDecision(gateName string, decision any) {
	s.routingDecisions[gateName] = decision
}

// RoutingDecision returns the last decision gateName made, and whether it
// has ever run.
func (s *RunState) RoutingDecision(gateName string) (any, bool) {
	d, ok := s.routingDecisions[gateName]
	return d, ok
}

// Snapshot returns a shallow copy of the current values, safe to hand to a
// concurrent superstep's batch of tasks as a read-only view: the
// tasks never observe partial writes from siblings running in the same
// superstep.
func (s *RunState) Snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// VersionSnapshot returns a shallow copy of the current version table,
// paired with Snapshot for consistent ready-rule evaluation at superstep
// entry.
func (s *RunState) VersionSnapshot() map[string]uint64 {
	out := make(map[string]uint64, len(s.versions))
	for k, v := range s.versions {
		out[k] = v
	}
	return out
}
