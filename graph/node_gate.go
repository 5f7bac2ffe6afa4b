package graph

import (
	"context"
	"fmt"
	"reflect"
)

// terminalSentinel is the unique type behind End; comparing by type (not
// value) keeps a caller from accidentally producing an equivalent sentinel
// by constructing a second instance.
type terminalSentinel struct{}

func (terminalSentinel) String() string { return "END" }

// End is the terminal sentinel: a routing decision meaning "no further
// targets".
var End = terminalSentinel{}

// RouteFunc computes an N-way routing decision: nil (only valid when the
// gate has a fallback), a single target name (string), a slice of target
// names ([]string, only valid when MultiTarget is true), or End.
type RouteFunc func(ctx context.Context, inputs map[string]any) (any, error)

// BinaryGateFunc computes a binary routing decision; the return value must
// be a strict bool.
type BinaryGateFunc func(ctx context.Context, inputs map[string]any) (bool, error)

// RouteNode is an N-way routing gate.
type RouteNode struct {
	base
	fn          RouteFunc
	targets     []string
	multiTarget bool
	fallback    any
	defaults    map[string]any
}

// NewRouteNode builds an N-way gate. targets lists the node names this gate
// may route to; End is always an implicitly valid decision and need not be
// listed.
func NewRouteNode(name string, inputs []string, targets []string, fn RouteFunc, multiTarget bool) *RouteNode {
	return &RouteNode{
		base:        base{name: name, inputs: inputs},
		fn:          fn,
		targets:     targets,
		multiTarget: multiTarget,
	}
}

// WithFallback sets the decision substituted when fn returns nil.
func (n *RouteNode) WithFallback(fallback any) *RouteNode {
	c := *n
	c.fallback = fallback
	return &c
}

func (n *RouteNode) Kind() Kind        { return KindRoute }
func (n *RouteNode) Targets() []string { return n.targets }
func (n *RouteNode) MultiTarget() bool { return n.multiTarget }
func (n *RouteNode) Fallback() any     { return n.fallback }

func (n *RouteNode) DefinitionHash() string {
	return hashParts("RouteNode", n.name, fmt.Sprint(n.inputs), "[]")
}

func (n *RouteNode) HasDefault(param string) bool { _, ok := n.defaults[param]; return ok }
func (n *RouteNode) GetDefault(param string) any  { return n.defaults[param] }
func (n *RouteNode) InputType(string) reflect.Type  { return nil }
func (n *RouteNode) OutputType(string) reflect.Type { return nil }

// CacheEnabled is always false: gates never cache.
func (n *RouteNode) CacheEnabled() bool { return false }

func (n *RouteNode) Run(ctx context.Context, inputs map[string]any) (any, error) {
	return n.fn(ctx, inputs)
}

func (n *RouteNode) WithName(name string) (Node, error) {
	c := n.clone()
	renamed, hist, err := applyRename([]string{c.name}, map[string]string{c.name: name}, "name", c.renameHistory)
	if err != nil {
		return nil, err
	}
	c.name, c.renameHistory = renamed[0], hist
	nn := *n
	nn.base = c
	return &nn, nil
}

func (n *RouteNode) WithInputs(mapping map[string]string) (Node, error) {
	c := n.clone()
	renamed, hist, err := applyRename(c.inputs, mapping, "inputs", c.renameHistory)
	if err != nil {
		return nil, err
	}
	c.inputs, c.renameHistory = renamed, hist
	nn := *n
	nn.base = c
	return &nn, nil
}

// WithOutputs is a no-op beyond validation: gates produce no data outputs.
func (n *RouteNode) WithOutputs(mapping map[string]string) (Node, error) {
	if len(mapping) == 0 {
		return n, nil
	}
	return nil, &RenameError{Message: fmt.Sprintf("gate %q has no outputs to rename", n.name)}
}

// BinaryGateNode is a binary routing gate.
type BinaryGateNode struct {
	base
	fn        BinaryGateFunc
	whenTrue  any
	whenFalse any
	defaults  map[string]any
}

// NewBinaryGateNode builds a binary gate. whenTrue/whenFalse are each
// either a target node name (string) or End.
func NewBinaryGateNode(name string, inputs []string, whenTrue, whenFalse any, fn BinaryGateFunc) *BinaryGateNode {
	return &BinaryGateNode{
		base:      base{name: name, inputs: inputs},
		fn:        fn,
		whenTrue:  whenTrue,
		whenFalse: whenFalse,
	}
}

func (n *BinaryGateNode) Kind() Kind { return KindBinaryGate }

// Targets returns the resolved {whenTrue, whenFalse} target set, used by
// validation and conflict resolution exactly like an N-way gate's targets.
func (n *BinaryGateNode) Targets() []string {
	var out []string
	for _, t := range []any{n.whenTrue, n.whenFalse} {
		if s, ok := t.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (n *BinaryGateNode) WhenTrue() any  { return n.whenTrue }
func (n *BinaryGateNode) WhenFalse() any { return n.whenFalse }

func (n *BinaryGateNode) DefinitionHash() string {
	return hashParts("BinaryGateNode", n.name, fmt.Sprint(n.inputs), "[]")
}

func (n *BinaryGateNode) HasDefault(param string) bool { _, ok := n.defaults[param]; return ok }
func (n *BinaryGateNode) GetDefault(param string) any  { return n.defaults[param] }
func (n *BinaryGateNode) InputType(string) reflect.Type  { return nil }
func (n *BinaryGateNode) OutputType(string) reflect.Type { return nil }
func (n *BinaryGateNode) CacheEnabled() bool             { return false }

func (n *BinaryGateNode) Run(ctx context.Context, inputs map[string]any) (bool, error) {
	return n.fn(ctx, inputs)
}

func (n *BinaryGateNode) WithName(name string) (Node, error) {
	c := n.clone()
	renamed, hist, err := applyRename([]string{c.name}, map[string]string{c.name: name}, "name", c.renameHistory)
	if err != nil {
		return nil, err
	}
	c.name, c.renameHistory = renamed[0], hist
	nn := *n
	nn.base = c
	return &nn, nil
}

func (n *BinaryGateNode) WithInputs(mapping map[string]string) (Node, error) {
	c := n.clone()
	renamed, hist, err := applyRename(c.inputs, mapping, "inputs", c.renameHistory)
	if err != nil {
		return nil, err
	}
	c.inputs, c.renameHistory = renamed, hist
	nn := *n
	nn.base = c
	return &nn, nil
}

func (n *BinaryGateNode) WithOutputs(mapping map[string]string) (Node, error) {
	if len(mapping) == 0 {
		return n, nil
	}
	return nil, &RenameError{Message: fmt.Sprintf("gate %q has no outputs to rename", n.name)}
}

// isGateNode reports whether n is a RouteNode or BinaryGateNode — used by
// the scheduler to emit route-decision events and routing metrics for gate
// nodes only.
func isGateNode(n Node) bool {
	switch n.Kind() {
	case KindRoute, KindBinaryGate:
		return true
	default:
		return false
	}
}
