package graph

import (
	"fmt"
	"sort"
)

// Graph is an immutable collection of nodes plus their derived edge set,
// binding table, optional entry point, and optional selected-output tuple.
// Bind, WithEntrypoint, and Select all return new Graph values; the
// receiver is never mutated. There is no node-replacement method.
type Graph struct {
	name        string
	nodes       map[string]Node
	nodeOrder   []string
	edges       []Edge
	bindings    map[string]any
	entrypoint  string
	selected    []string
	strictTypes bool
	active      map[string]bool // nil means every node is active
	inputSpec   InputSpec
}

// GraphOption configures graph construction.
type GraphOption func(*Graph)

// WithGraphName sets the graph's name.
func WithGraphName(name string) GraphOption { return func(g *Graph) { g.name = name } }

// WithStrictTypes enables type-compatibility validation.
func WithStrictTypes(strict bool) GraphOption { return func(g *Graph) { g.strictTypes = strict } }

// WithBindings supplies the initial binding table.
func WithBindings(bindings map[string]any) GraphOption {
	return func(g *Graph) { g.bindings = bindings }
}

// New builds a Graph from nodes, running every build-time validation step
// before returning. On failure, returns the first *GraphConfigError
// encountered.
func New(nodes []Node, opts ...GraphOption) (*Graph, error) {
	g := &Graph{
		nodes:    map[string]Node{},
		bindings: map[string]any{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.bindings == nil {
		g.bindings = map[string]any{}
	}

	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := g.nodes[n.Name()]; dup {
			return nil, &GraphConfigError{Node: n.Name(), Message: "duplicate node name"}
		}
		g.nodes[n.Name()] = n
		order = append(order, n.Name())
	}
	sort.Strings(order)
	g.nodeOrder = order

	if err := validateGraph(g); err != nil {
		return nil, err
	}

	g.edges = deriveEdges(g.nodes)
	g.inputSpec = computeInputSpec(g.nodes, g.edges, g.bindings, nil)
	return g, nil
}

func (g *Graph) Name() string { return g.name }

// Node looks up a node by name within the active subset.
func (g *Graph) Node(name string) (Node, bool) {
	if g.active != nil && !g.active[name] {
		return nil, false
	}
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns the active node set, name -> Node.
func (g *Graph) Nodes() map[string]Node {
	out := make(map[string]Node, len(g.nodes))
	for name, n := range g.nodes {
		if g.active == nil || g.active[name] {
			out[name] = n
		}
	}
	return out
}

// NodeNames returns the active node names in stable (sorted) order.
func (g *Graph) NodeNames() []string {
	var names []string
	for _, name := range g.nodeOrder {
		if g.active == nil || g.active[name] {
			names = append(names, name)
		}
	}
	return names
}

// Edges returns the edges whose endpoints both lie in the active subset.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, e := range g.edges {
		if g.nodeActive(e.From) && g.nodeActive(e.To) {
			out = append(out, e)
		}
	}
	return out
}

func (g *Graph) nodeActive(name string) bool {
	return g.active == nil || g.active[name]
}

// Bindings returns the current binding table.
func (g *Graph) Bindings() map[string]any { return g.bindings }

// InputSpec returns the computed input spec for the active subset.
func (g *Graph) InputSpec() InputSpec { return g.inputSpec }

// Entrypoint returns the configured entry point node name, or "" if none.
func (g *Graph) Entrypoint() string { return g.entrypoint }

// SelectedOutputs returns the configured output selection, or nil if none.
func (g *Graph) SelectedOutputs() []string { return g.selected }

// outputs returns every output value name produced by a node in the active
// subset, used as the default result selection when none was given.
func (g *Graph) outputs() []string {
	seen := map[string]bool{}
	var out []string
	for _, name := range g.NodeNames() {
		for _, o := range g.nodes[name].Outputs() {
			if !seen[o] {
				seen[o] = true
				out = append(out, o)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Bind returns a new graph with values merged into the binding table;
// bound values are shared references and are never copied. The
// input spec is recomputed over the (unchanged) active subset.
func (g *Graph) Bind(values map[string]any) *Graph {
	ng := g.shallowCopy()
	merged := make(map[string]any, len(g.bindings)+len(values))
	for k, v := range g.bindings {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	ng.bindings = merged
	ng.inputSpec = computeInputSpec(ng.nodes, ng.edges, ng.bindings, ng.active)
	return ng
}

// WithEntrypoint narrows the active subgraph to the forward cone of name
//: the entry node's own inputs become run-time inputs even if
// upstream producers exist in the full graph.
func (g *Graph) WithEntrypoint(name string) (*Graph, error) {
	if _, ok := g.nodes[name]; !ok {
		return nil, &GraphConfigError{Node: name, Message: "with_entrypoint: no such node"}
	}
	active := forwardCone(g.nodes, g.edges, name)
	ng := g.shallowCopy()
	ng.entrypoint = name
	ng.active = active
	ng.inputSpec = computeInputSpec(ng.nodes, ng.edges, ng.bindings, active)
	return ng, nil
}

// Select narrows the active subgraph to the nodes reachable backward from
// the named outputs, expanding gates pessimistically.
func (g *Graph) Select(outputs ...string) (*Graph, error) {
	producers := map[string][]string{}
	for name, n := range g.nodes {
		for _, o := range n.Outputs() {
			producers[o] = append(producers[o], name)
		}
	}
	for _, o := range outputs {
		if len(producers[o]) == 0 {
			return nil, &GraphConfigError{Message: fmt.Sprintf("select: no node produces output %q", o)}
		}
	}
	active := backwardCone(g.nodes, g.edges, outputs)
	ng := g.shallowCopy()
	ng.selected = append([]string{}, outputs...)
	ng.active = active
	ng.inputSpec = computeInputSpec(ng.nodes, ng.edges, ng.bindings, active)
	return ng, nil
}

// AsNode wraps this graph as a SubgraphNode, usable as a node in an
// enclosing graph.
func (g *Graph) AsNode(name string) (*SubgraphNode, error) {
	return NewSubgraphNode(name, g, nil)
}

// DefinitionHash is the canonical concatenation of active child nodes'
// definition hashes, ordered by node name.
func (g *Graph) DefinitionHash() string {
	names := g.NodeNames()
	parts := make([]string, 0, len(names)*2)
	for _, name := range names {
		parts = append(parts, name, g.nodes[name].DefinitionHash())
	}
	return hashParts(parts...)
}

func (g *Graph) shallowCopy() *Graph {
	ng := &Graph{
		name:        g.name,
		nodes:       g.nodes,
		nodeOrder:   g.nodeOrder,
		edges:       g.edges,
		bindings:    g.bindings,
		entrypoint:  g.entrypoint,
		selected:    g.selected,
		strictTypes: g.strictTypes,
		active:      g.active,
	}
	return ng
}

// forwardCone returns the set of node names reachable forward (including
// start itself) via data, control, and ordering edges.
func forwardCone(nodes map[string]Node, edges []Edge, start string) map[string]bool {
	active := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range edges {
			if e.From == cur && !active[e.To] {
				active[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return active
}

// backwardCone returns the set of node names reachable backward from
// outputs via data edges, with a fixpoint expansion: any gate whose
// decision could determine whether an active node runs has *all* of its
// declared targets added too, since which branch fires is not known
// statically.
func backwardCone(nodes map[string]Node, edges []Edge, outputs []string) map[string]bool {
	active := map[string]bool{}
	var queueData []string

	producers := map[string][]string{}
	for name, n := range nodes {
		for _, o := range n.Outputs() {
			producers[o] = append(producers[o], name)
		}
	}
	for _, o := range outputs {
		for _, p := range producers[o] {
			if !active[p] {
				active[p] = true
				queueData = append(queueData, p)
			}
		}
	}

	dataPreds := map[string][]string{}   // node -> producers of its inputs
	controlPreds := map[string][]string{} // node -> gates that target it
	gateTargets := map[string][]string{}  // gate -> its targets
	for _, e := range edges {
		switch e.Kind {
		case EdgeData:
			dataPreds[e.To] = append(dataPreds[e.To], e.From)
		case EdgeControl:
			controlPreds[e.To] = append(controlPreds[e.To], e.From)
			gateTargets[e.From] = append(gateTargets[e.From], e.To)
		}
	}

	changed := true
	for changed {
		changed = false
		for name := range active {
			for _, p := range dataPreds[name] {
				if !active[p] {
					active[p] = true
					changed = true
				}
			}
			for _, g := range controlPreds[name] {
				if !active[g] {
					active[g] = true
					changed = true
				}
				for _, t := range gateTargets[g] {
					if !active[t] {
						active[t] = true
						changed = true
					}
				}
			}
		}
	}
	return active
}
