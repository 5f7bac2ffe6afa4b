package graph

// EdgeKind discriminates the three edge shapes edges are derived into.
// Edges are never declared directly; they are scanned out of the
// node set.
type EdgeKind int

const (
	// EdgeData connects a producer's output to a consumer's input.
	EdgeData EdgeKind = iota
	// EdgeControl connects a gate to one of its declared targets.
	EdgeControl
	// EdgeOrdering connects an emit producer to a wait-for consumer; no
	// data flows, only a freshness constraint.
	EdgeOrdering
)

// Edge is a derived connection between two nodes.
type Edge struct {
	Kind  EdgeKind
	From  string
	To    string
	Value string // value/signal name; empty for a plain control edge
}

// deriveEdges scans nodes to build the full edge set. Between any
// pair of nodes, multiple edge kinds may coexist, so this returns a slice
// rather than a map keyed by (from, to).
func deriveEdges(nodes map[string]Node) []Edge {
	var edges []Edge

	producer := map[string][]string{} // output value name -> producing node names
	for _, n := range nodes {
		for _, o := range n.Outputs() {
			producer[o] = append(producer[o], n.Name())
		}
	}
	emitter := map[string][]string{} // emit-only output name -> producing node names
	for _, n := range nodes {
		for _, o := range n.EmitOutputs() {
			emitter[o] = append(emitter[o], n.Name())
		}
	}

	for _, n := range nodes {
		for _, p := range n.Inputs() {
			for _, from := range producer[p] {
				edges = append(edges, Edge{Kind: EdgeData, From: from, To: n.Name(), Value: p})
			}
		}
		for _, w := range n.WaitFor() {
			for _, from := range emitter[w] {
				edges = append(edges, Edge{Kind: EdgeOrdering, From: from, To: n.Name(), Value: w})
			}
		}
		switch g := n.(type) {
		case *RouteNode:
			for _, t := range g.Targets() {
				edges = append(edges, Edge{Kind: EdgeControl, From: n.Name(), To: t})
			}
		case *BinaryGateNode:
			for _, t := range g.Targets() {
				edges = append(edges, Edge{Kind: EdgeControl, From: n.Name(), To: t})
			}
		}
	}

	return edges
}
