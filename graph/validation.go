package graph

import (
	"fmt"
	"reflect"
)

// validateGraph runs every build-time validation step, in order, on the
// flattened node set. Step 6 (output-conflict mutex/ordering) lives in
// conflict.go; step 7 (strict types) is a placeholder hook, since this
// module's Node.InputType/OutputType return nil by default.
func validateGraph(g *Graph) error {
	if err := validateGraphName(g.name); err != nil {
		return err
	}
	if err := validateReservedAndIdentifiers(g.nodes); err != nil {
		return err
	}
	if err := validateNoNamespaceCollision(g.nodes); err != nil {
		return err
	}
	if err := validateConsistentDefaults(g.nodes); err != nil {
		return err
	}
	if err := validateGateTargets(g.nodes); err != nil {
		return err
	}
	if err := validateOutputConflicts(g.nodes); err != nil {
		return err
	}
	if g.strictTypes {
		if err := validateTypes(g.nodes, deriveEdges(g.nodes)); err != nil {
			return err
		}
	}
	return nil
}

func validateGraphName(name string) error {
	if name != "" && !isGraphNameLegal(name) {
		return &GraphConfigError{
			Message: fmt.Sprintf("invalid graph name %q: names cannot contain '.' or '/'", name),
			Hint:    "use underscores or hyphens instead",
		}
	}
	return nil
}

func validateReservedAndIdentifiers(nodes map[string]Node) error {
	for _, n := range nodes {
		if _, ok := n.(*SubgraphNode); ok {
			// Subgraph node names follow graph-name rules (hyphens allowed).
			if !isGraphNameLegal(n.Name()) {
				return &GraphConfigError{Node: n.Name(), Message: "invalid subgraph node name"}
			}
			continue
		}
		if !IsLegalName(n.Name()) {
			return &GraphConfigError{
				Node:    n.Name(),
				Message: "invalid node name: must be a legal identifier",
				Hint:    "use letters, digits, and underscores only",
			}
		}
		for _, o := range n.Outputs() {
			if !IsLegalName(o) {
				return &GraphConfigError{
					Node:    n.Name(),
					Param:   o,
					Message: "invalid output name: must be a legal identifier",
				}
			}
		}
	}
	return nil
}

func validateNoNamespaceCollision(nodes map[string]Node) error {
	graphNodeNames := map[string]bool{}
	for _, n := range nodes {
		if _, ok := n.(*SubgraphNode); ok {
			graphNodeNames[n.Name()] = true
		}
	}
	if len(graphNodeNames) == 0 {
		return nil
	}
	allOutputs := map[string]string{} // output -> producing node
	for _, n := range nodes {
		for _, o := range n.Outputs() {
			allOutputs[o] = n.Name()
		}
	}
	for gnName := range graphNodeNames {
		if source, ok := allOutputs[gnName]; ok && source != gnName {
			return &GraphConfigError{
				Node:    gnName,
				Message: fmt.Sprintf("subgraph node name %q collides with output produced by node %q", gnName, source),
				Hint:    "rename the subgraph node",
			}
		}
	}
	return nil
}

// validateConsistentDefaults requires that a shared input parameter has
// ALL-or-NONE consistent signature defaults across the nodes that declare
// it; bound values never count for this check.
func validateConsistentDefaults(nodes map[string]Node) error {
	type info = struct {
		has   bool
		value any
		node  string
	}
	byParam := map[string][]info{}
	for _, n := range nodes {
		for _, p := range n.Inputs() {
			if n.HasDefault(p) {
				byParam[p] = append(byParam[p], info{true, n.GetDefault(p), n.Name()})
			} else {
				byParam[p] = append(byParam[p], info{false, nil, n.Name()})
			}
		}
	}
	for param, infos := range byParam {
		if len(infos) < 2 {
			continue
		}
		var withDefault, withoutDefault []info
		for _, i := range infos {
			if i.has {
				withDefault = append(withDefault, i)
			} else {
				withoutDefault = append(withoutDefault, i)
			}
		}
		if len(withDefault) > 0 && len(withoutDefault) > 0 {
			return &GraphConfigError{
				Param:   param,
				Message: fmt.Sprintf("inconsistent defaults for %q: %v have one, %v don't", param, nodeNamesOf(withDefault), nodeNamesOf(withoutDefault)),
				Hint:    "add the same default to all nodes, or bind the parameter instead",
			}
		}
		if len(withDefault) > 1 {
			first := withDefault[0]
			for _, other := range withDefault[1:] {
				if !valuesEqual(first.value, other.value) {
					return &GraphConfigError{
						Param:   param,
						Message: fmt.Sprintf("inconsistent default values for %q between node %q and node %q", param, first.node, other.node),
						Hint:    "use the same default value in both nodes",
					}
				}
			}
		}
	}
	return nil
}

func nodeNamesOf(infos []struct {
	has   bool
	value any
	node  string
}) []string {
	var out []string
	for _, i := range infos {
		out = append(out, i.node)
	}
	return out
}

// valuesEqual compares two values using identity first, falling back to
// equality; comparisons that would panic (uncomparable types) report
// unequal rather than propagating a panic.
func valuesEqual(a, b any) (eq bool) {
	if a == nil && b == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

func validateGateTargets(nodes map[string]Node) error {
	for _, n := range nodes {
		var targets []string
		switch g := n.(type) {
		case *RouteNode:
			targets = g.Targets()
		case *BinaryGateNode:
			targets = g.Targets()
		default:
			continue
		}
		for _, t := range targets {
			if t == n.Name() {
				return &GraphConfigError{Node: n.Name(), Message: "gate may not target itself"}
			}
			if _, ok := nodes[t]; !ok {
				return &GraphConfigError{
					Node:    n.Name(),
					Message: fmt.Sprintf("gate target %q does not reference an existing node", t),
				}
			}
		}
	}
	return nil
}

// validateTypes checks type compatibility for every derived data edge when
// strict types are enabled. Absent annotations on either side
// are permitted to pass (Go function nodes routinely have no declared
// InputType/OutputType; a caller opting into strict_types is expected to
// populate both sides for the edges they care about).
func validateTypes(nodes map[string]Node, edges []Edge) error {
	for _, e := range edges {
		if e.Kind != EdgeData {
			continue
		}
		source := nodes[e.From]
		target := nodes[e.To]
		outT := source.OutputType(e.Value)
		inT := target.InputType(e.Value)
		if outT == nil || inT == nil {
			continue
		}
		if !isTypeCompatible(outT, inT) {
			return &GraphConfigError{
				Message: fmt.Sprintf("type mismatch: node %q output %q is %s, node %q input %q expects %s",
					e.From, e.Value, outT, e.To, e.Value, inT),
			}
		}
	}
	return nil
}

// isTypeCompatible allows identical types and
// treats assignability as the baseline structural check: "structurally
// assignable; unions widen." Go has no union types, so the widening clause
// has no analog here; interface satisfaction already gives the same
// effect (a concrete output type assignable to a consumer's declared
// interface input type passes).
func isTypeCompatible(out, in reflect.Type) bool {
	if out == in {
		return true
	}
	return out.AssignableTo(in)
}
