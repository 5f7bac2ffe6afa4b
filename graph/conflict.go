package graph

import "fmt"

// validateOutputConflicts checks that for every output name produced
// by more than one node, every pair of producers must be mutex (exclusive
// branches of the same gate) or ordered (a directed path survives once
// contested data edges are removed).
func validateOutputConflicts(nodes map[string]Node) error {
	producedBy := map[string][]string{}
	for _, n := range nodes {
		for _, o := range n.Outputs() {
			producedBy[o] = append(producedBy[o], n.Name())
		}
	}

	contested := map[string]bool{}
	conflicts := map[string][]string{} // output -> producers, for n >= 2
	for o, producers := range producedBy {
		if len(producers) >= 2 {
			contested[o] = true
			conflicts[o] = producers
		}
	}
	if len(conflicts) == 0 {
		return nil
	}

	fullEdges := buildFullEdgeMap(nodes, contested)
	forwardAdj := forwardAdjacency(fullEdges)
	mutexGroups := expandMutexGroups(nodes)

	for output, producers := range conflicts {
		for i := 0; i < len(producers); i++ {
			for j := i + 1; j < len(producers); j++ {
				p, q := producers[i], producers[j]
				if isPairMutex(p, q, mutexGroups, forwardAdj) {
					continue
				}
				if isPairOrdered(p, q, fullEdges, contested) {
					continue
				}
				return &GraphConfigError{
					Message: fmt.Sprintf("output %q is produced by both %q and %q, which are neither mutually exclusive nor ordered", output, p, q),
					Hint:    "route them through an exclusive gate, or connect them with a control/ordering edge",
				}
			}
		}
	}
	return nil
}

// edgeInfo tracks every edge kind between a single (from, to) pair, since a
// plain map keyed by (from, to) can only hold one edge.
type edgeInfo struct {
	dataValues  map[string]bool
	hasControl  bool
	hasOrdering bool
}

// buildFullEdgeMap builds (from -> to -> edgeInfo) including data edges
// from all producers (not just the active node set's default resolution)
// plus control/ordering edges, so reachability checks in isPairOrdered see
// the same graph the scheduler would route through.
func buildFullEdgeMap(nodes map[string]Node, contested map[string]bool) map[string]map[string]*edgeInfo {
	out := map[string]map[string]*edgeInfo{}
	ensure := func(from, to string) *edgeInfo {
		if out[from] == nil {
			out[from] = map[string]*edgeInfo{}
		}
		if out[from][to] == nil {
			out[from][to] = &edgeInfo{dataValues: map[string]bool{}}
		}
		return out[from][to]
	}
	for _, e := range deriveEdges(nodes) {
		switch e.Kind {
		case EdgeData:
			ensure(e.From, e.To).dataValues[e.Value] = true
		case EdgeControl:
			ensure(e.From, e.To).hasControl = true
		case EdgeOrdering:
			ensure(e.From, e.To).hasOrdering = true
		}
	}
	return out
}

// isPairOrdered builds the subgraph keeping control/ordering edges and data
// edges that carry at least one non-contested value, then checks whether a
// directed path survives between p and q in either direction.
func isPairOrdered(p, q string, fullEdges map[string]map[string]*edgeInfo, contested map[string]bool) bool {
	adj := map[string][]string{}
	for from, tos := range fullEdges {
		for to, info := range tos {
			survives := info.hasControl || info.hasOrdering
			if !survives {
				for v := range info.dataValues {
					if !contested[v] {
						survives = true
						break
					}
				}
			}
			if survives {
				adj[from] = append(adj[from], to)
			}
		}
	}
	return hasPath(adj, p, q) || hasPath(adj, q, p)
}

func hasPath(adj map[string][]string, from, to string) bool {
	if from == to {
		return true
	}
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// mutexGroup is a set of node names mutually exclusive with each other,
// expanded from a single gate's non-terminal string targets.
type mutexGroup struct {
	gate    string
	members map[string]bool
}

// expandMutexGroups collects, for every N-way gate with MultiTarget=false
// and every binary gate, the set of (>=2) non-terminal string targets —
// the only shapes where "at most one branch fires" is guaranteed.
func expandMutexGroups(nodes map[string]Node) []mutexGroup {
	var groups []mutexGroup
	for _, n := range nodes {
		var targets []string
		switch g := n.(type) {
		case *RouteNode:
			if g.MultiTarget() {
				continue
			}
			targets = g.Targets()
		case *BinaryGateNode:
			targets = g.Targets()
		default:
			continue
		}
		if len(targets) < 2 {
			continue
		}
		members := map[string]bool{}
		for _, t := range targets {
			members[t] = true
		}
		groups = append(groups, mutexGroup{gate: n.Name(), members: members})
	}
	return groups
}

// forwardAdjacency collapses a full (from -> to -> edgeInfo) map into a
// plain forward adjacency list over every edge kind, used to compute
// exclusive-reachability sets downstream of a gate's targets. Unlike
// isPairOrdered's "surviving" adjacency, this keeps every edge: a node
// downstream of a contested data edge is still exclusively reachable from
// whichever branch carries it.
func forwardAdjacency(fullEdges map[string]map[string]*edgeInfo) map[string][]string {
	adj := map[string][]string{}
	for from, tos := range fullEdges {
		for to := range tos {
			adj[from] = append(adj[from], to)
		}
	}
	return adj
}

// isPairMutex reports whether p and q are exclusive-reachable from two
// distinct targets of the same mutex gate: a node reachable from exactly
// one target of the gate is exclusive to that target (computed by
// computeExclusiveReachability over the full forward graph, not just direct
// target membership — a producer nested several hops downstream of a gate
// branch is just as exclusive as the branch's immediate target); two nodes
// exclusive to two different targets of the same gate can never both run.
func isPairMutex(p, q string, groups []mutexGroup, adj map[string][]string) bool {
	for _, grp := range groups {
		targets := make([]string, 0, len(grp.members))
		for t := range grp.members {
			targets = append(targets, t)
		}
		counts := computeExclusiveReachability(adj, targets)
		pTarget, pExclusive := exclusiveTargetOf(p, targets, adj, counts)
		qTarget, qExclusive := exclusiveTargetOf(q, targets, adj, counts)
		if pExclusive && qExclusive && pTarget != qTarget {
			return true
		}
	}
	return false
}

// exclusiveTargetOf reports the single gate target that exclusively reaches
// node (including node being the target itself), or ok=false if node is
// reachable from more than one target (or from none).
func exclusiveTargetOf(node string, targets []string, adj map[string][]string, counts map[string]int) (target string, ok bool) {
	if counts[node] != 1 {
		return "", false
	}
	for _, t := range targets {
		if t == node {
			return t, true
		}
		if reachableFrom(adj, t)[node] {
			return t, true
		}
	}
	return "", false
}

// reachableFrom returns the set of nodes reachable from start, inclusive of
// start itself, via adj.
func reachableFrom(adj map[string][]string, start string) map[string]bool {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}

// computeExclusiveReachability returns, for each node reachable from at
// least one of targets, the count of distinct targets that can reach it —
// a node reachable from exactly one target is exclusive to that target.
// Single-pass Counter-based approach, ground on the original's exclusive-
// reachability computation; isPairMutex is its only caller.
func computeExclusiveReachability(adj map[string][]string, targets []string) map[string]int {
	counts := map[string]int{}
	for _, t := range targets {
		visited := map[string]bool{}
		queue := []string{t}
		visited[t] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			counts[cur]++
			for _, next := range adj[cur] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
	}
	return counts
}
