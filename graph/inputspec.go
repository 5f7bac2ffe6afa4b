package graph

import "sort"

// InputSpec categorizes every parameter a graph's active node set consumes
//: bound (supplied once via Bind and never a run-time input),
// seed (flows around a cycle, so it needs an initial value on the first
// superstep even though some node also produces it), required (no producer,
// no default anywhere), and optional (no producer, but every node that
// declares it also supplies a default).
type InputSpec struct {
	Required []string
	Optional []string
	Seeds    []string
	Bound    map[string]any
}

// All returns every run-time-visible input name: required, optional, and
// seed, sorted. Bound values are never run-time inputs so they are
// excluded.
func (s InputSpec) All() []string {
	out := make([]string, 0, len(s.Required)+len(s.Optional)+len(s.Seeds))
	out = append(out, s.Required...)
	out = append(out, s.Optional...)
	out = append(out, s.Seeds...)
	sort.Strings(out)
	return out
}

// computeInputSpec categorizes every parameter declared as an input by a
// node in the active subset. active == nil means every node in nodes is
// active.
func computeInputSpec(nodes map[string]Node, edges []Edge, bindings map[string]any, active map[string]bool) InputSpec {
	isActive := func(name string) bool { return active == nil || active[name] }

	producedBy := map[string][]string{} // param -> producing node names, within active subset
	for name, n := range nodes {
		if !isActive(name) {
			continue
		}
		for _, o := range n.Outputs() {
			producedBy[o] = append(producedBy[o], name)
		}
	}

	cycleParams := cycleDataParams(nodes, edges, isActive)

	spec := InputSpec{Bound: map[string]any{}}
	for k, v := range bindings {
		spec.Bound[k] = v
	}

	seen := map[string]bool{}
	hasDefault := map[string]bool{}
	anyDeclared := map[string]bool{}
	for name, n := range nodes {
		if !isActive(name) {
			continue
		}
		for _, p := range n.Inputs() {
			anyDeclared[p] = true
			if n.HasDefault(p) {
				hasDefault[p] = true
			}
		}
	}

	for param := range anyDeclared {
		if _, bound := spec.Bound[param]; bound {
			continue
		}
		if cycleParams[param] {
			if !seen[param] {
				seen[param] = true
				spec.Seeds = append(spec.Seeds, param)
			}
			continue
		}
		if len(producedBy[param]) > 0 {
			// Produced by an active node and not part of a cycle: purely
			// internal, not visible as a run-time input.
			continue
		}
		if !seen[param] {
			seen[param] = true
			if hasDefault[param] {
				spec.Optional = append(spec.Optional, param)
			} else {
				spec.Required = append(spec.Required, param)
			}
		}
	}

	sort.Strings(spec.Required)
	sort.Strings(spec.Optional)
	sort.Strings(spec.Seeds)
	return spec
}

// cycleDataParams returns the set of data-edge value names that flow along
// at least one elementary cycle in the active data-edge subgraph. A
// parameter on a cycle needs a seed value to break the chicken-and-egg
// deadlock of "produced only by a node that also consumes it."
func cycleDataParams(nodes map[string]Node, edges []Edge, isActive func(string) bool) map[string]bool {
	adj := map[string][]Edge{}
	for _, e := range edges {
		if e.Kind != EdgeData {
			continue
		}
		if !isActive(e.From) || !isActive(e.To) {
			continue
		}
		adj[e.From] = append(adj[e.From], e)
	}

	inCycle := map[string]bool{}
	visiting := map[string]bool{}
	done := map[string]bool{}

	var walk func(node string, stack []Edge) bool
	walk = func(node string, stack []Edge) bool {
		if visiting[node] {
			// Found a cycle; mark every value carried along the cyclic
			// portion of stack (from node's first occurrence onward).
			start := -1
			for i, e := range stack {
				if e.From == node {
					start = i
					break
				}
			}
			if start >= 0 {
				for _, e := range stack[start:] {
					inCycle[e.Value] = true
				}
			}
			return true
		}
		if done[node] {
			return false
		}
		visiting[node] = true
		for _, e := range adj[node] {
			walk(e.To, append(stack, e))
		}
		visiting[node] = false
		done[node] = true
		return false
	}

	var names []string
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if isActive(name) {
			walk(name, nil)
		}
	}
	return inCycle
}
