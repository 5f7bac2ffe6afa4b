package graph

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/hypergraph-go/graph/store"
)

// nodeOutcome is the uniform result of executing one node, regardless of
// variant. The scheduler merges outcomes into RunState after a
// superstep's whole batch has run; it never inspects variant-specific
// fields beyond what is populated here.
type nodeOutcome struct {
	outputs          map[string]any
	decision         any
	hasDecision      bool
	cached           bool
	consumedVersions map[string]uint64
	nestedRunID      string
	duration         time.Duration
	err              error
}

// executeNode dispatches n to its per-variant executor.
func (rs *runSession) executeNode(ctx context.Context, n Node) nodeOutcome {
	start := rs.now()
	var out nodeOutcome
	switch nn := n.(type) {
	case *FuncNode:
		out = rs.executeFunc(ctx, nn)
	case *RouteNode:
		out = rs.executeRoute(ctx, nn)
	case *BinaryGateNode:
		out = rs.executeBinaryGate(ctx, nn)
	case *SubgraphNode:
		out = rs.executeSubgraph(ctx, nn)
	case *InterruptNode:
		out = rs.executeInterrupt(ctx, nn)
	default:
		out = nodeOutcome{err: &IncompatibleRunnerError{NodeName: n.Name(), Capability: "unknown node kind"}}
	}
	out.duration = rs.since(start)
	return out
}

func (rs *runSession) executeFunc(ctx context.Context, n *FuncNode) nodeOutcome {
	inputs, consumed, err := collectInputs(rs.graph, rs.state, n)
	if err != nil {
		return nodeOutcome{err: err, consumedVersions: consumed}
	}

	var key string
	cache := rs.runner.cache
	if cache != nil && n.CacheEnabled() {
		if k, err := CacheKey(n.DefinitionHash(), inputs); err == nil {
			key = k
			if entry, ok := cache.Get(key); ok {
				rs.runner.recordCacheHit(n.Name())
				return nodeOutcome{outputs: entry.Outputs, cached: true, consumedVersions: consumed}
			}
		}
		rs.runner.recordCacheMiss(n.Name())
	}

	if rs.leafSem != nil {
		if err := rs.leafSem.Acquire(ctx, 1); err != nil {
			return nodeOutcome{err: err, consumedVersions: consumed}
		}
		defer rs.leafSem.Release(1)
	}

	funcInputs := n.MapInputsToFuncParams(inputs)
	outputs, err := n.Run(ctx, funcInputs)
	if err != nil {
		return nodeOutcome{err: wrapNodeError(n.Name(), err, rs), consumedVersions: consumed}
	}

	if key != "" {
		cache.Set(key, CacheEntry{Outputs: outputs})
	}
	return nodeOutcome{outputs: outputs, consumedVersions: consumed}
}

func (rs *runSession) executeRoute(ctx context.Context, n *RouteNode) nodeOutcome {
	inputs, consumed, err := collectInputs(rs.graph, rs.state, n)
	if err != nil {
		return nodeOutcome{err: err, consumedVersions: consumed}
	}
	decision, err := n.Run(ctx, inputs)
	if err != nil {
		return nodeOutcome{err: wrapNodeError(n.Name(), err, rs), consumedVersions: consumed}
	}
	if decision == nil {
		if n.Fallback() == nil {
			return nodeOutcome{err: &RouteInvalidError{Gate: n.Name(), Decision: nil, Valid: n.Targets()}, consumedVersions: consumed}
		}
		decision = n.Fallback()
	}
	if err := validateRouteDecision(n.Name(), decision, n.Targets(), n.MultiTarget()); err != nil {
		return nodeOutcome{err: err, consumedVersions: consumed}
	}
	return nodeOutcome{decision: decision, hasDecision: true, consumedVersions: consumed}
}

func (rs *runSession) executeBinaryGate(ctx context.Context, n *BinaryGateNode) nodeOutcome {
	inputs, consumed, err := collectInputs(rs.graph, rs.state, n)
	if err != nil {
		return nodeOutcome{err: err, consumedVersions: consumed}
	}
	ok, err := n.Run(ctx, inputs)
	if err != nil {
		return nodeOutcome{err: wrapNodeError(n.Name(), err, rs), consumedVersions: consumed}
	}
	decision := n.WhenFalse()
	if ok {
		decision = n.WhenTrue()
	}
	return nodeOutcome{decision: decision, hasDecision: true, consumedVersions: consumed}
}

func (rs *runSession) executeInterrupt(ctx context.Context, n *InterruptNode) nodeOutcome {
	inputs, consumed, err := collectInputs(rs.graph, rs.state, n)
	if err != nil {
		return nodeOutcome{err: err, consumedVersions: consumed}
	}

	var key string
	cache := rs.runner.cache
	if cache != nil && n.CacheEnabled() {
		if k, err := CacheKey(n.DefinitionHash(), inputs); err == nil {
			key = k
			if entry, ok := cache.Get(key); ok {
				rs.runner.recordCacheHit(n.Name())
				return nodeOutcome{outputs: entry.Outputs, cached: true, consumedVersions: consumed}
			}
		}
		rs.runner.recordCacheMiss(n.Name())
	}

	if v, ok := rs.state.Get(n.OutputParam()); ok {
		outputs := map[string]any{n.OutputParam(): v}
		if key != "" {
			cache.Set(key, CacheEntry{Outputs: outputs})
		}
		return nodeOutcome{outputs: outputs, consumedVersions: consumed}
	}
	inputVal := inputs[n.InputParam()]
	if h := n.Handler(); h != nil {
		resp, err := h(ctx, inputVal)
		if err != nil {
			return nodeOutcome{err: wrapNodeError(n.Name(), err, rs), consumedVersions: consumed}
		}
		outputs := map[string]any{n.OutputParam(): resp}
		if key != "" {
			cache.Set(key, CacheEntry{Outputs: outputs})
		}
		return nodeOutcome{outputs: outputs, consumedVersions: consumed}
	}
	rs.runner.dispatchInterrupt(rs, n.Name(), n.OutputParam(), inputVal)
	return nodeOutcome{
		err: &PauseSignal{Info: PauseInfo{
			NodeName:    n.Name(),
			OutputParam: n.OutputParam(),
			Value:       inputVal,
		}},
		consumedVersions: consumed,
	}
}

// wrapNodeError wraps a callable's error in *NodeExecutionError with the
// partial state snapshot taken at superstep entry. A *PauseSignal is
// returned unwrapped — it is a distinct control-flow channel, not a node
// failure — so callers may pass any error from n.Run through it.
func wrapNodeError(nodeName string, err error, rs *runSession) error {
	var pause *PauseSignal
	if errors.As(err, &pause) {
		return err
	}
	return &NodeExecutionError{
		NodeName:     nodeName,
		Cause:        err,
		PartialState: rs.state.Snapshot(),
	}
}

// validateRouteDecision checks an N-way gate's returned decision against
// its declared target set: End is always valid; a single
// string must be a declared target; a []string is only valid when the
// gate allows multiple targets, and every element must be declared.
func validateRouteDecision(gate string, decision any, targets []string, multiTarget bool) error {
	valid := make(map[string]bool, len(targets))
	for _, t := range targets {
		valid[t] = true
	}
	switch d := decision.(type) {
	case terminalSentinel:
		return nil
	case string:
		if !valid[d] {
			return &RouteInvalidError{Gate: gate, Decision: decision, Valid: targets}
		}
		return nil
	case []string:
		if !multiTarget {
			return &RouteInvalidError{Gate: gate, Decision: decision, Valid: targets}
		}
		for _, t := range d {
			if !valid[t] {
				return &RouteInvalidError{Gate: gate, Decision: decision, Valid: targets}
			}
		}
		return nil
	default:
		return &RouteInvalidError{Gate: gate, Decision: decision, Valid: targets}
	}
}

// decisionIncludes reports whether a gate's recorded decision keeps name
// eligible: End excludes everything, a string decision matches only
// itself, a []string decision matches any of its elements.
func decisionIncludes(decision any, name string) bool {
	switch d := decision.(type) {
	case terminalSentinel:
		return false
	case string:
		return d == name
	case []string:
		for _, t := range d {
			if t == name {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func nodeKindForStore(k Kind) store.NodeKind {
	switch k {
	case KindFunc:
		return store.KindFunc
	case KindRoute:
		return store.KindRoute
	case KindBinaryGate:
		return store.KindBinaryGate
	case KindSubgraph:
		return store.KindSubgraph
	case KindInterrupt:
		return store.KindInterrupt
	default:
		return store.KindFunc
	}
}
