package graph

import (
	"context"
	"fmt"
	"reflect"
)

// InterruptHandler auto-resolves an interrupt node's pause instead of
// raising it, given the value surfaced to the caller.
type InterruptHandler func(ctx context.Context, value any) (any, error)

// InterruptNode is a single-input, single-output pause point. Caching is
// off by default and opt-in via WithCache, mirroring FuncNode; its
// definition hash includes the declared response type but never the
// handler, so attaching/detaching a handler does not change its cache
// identity.
type InterruptNode struct {
	base
	responseType reflect.Type
	handler      InterruptHandler
	cache        bool
}

// InterruptOption configures an InterruptNode at construction time.
type InterruptOption func(*InterruptNode)

// WithInterruptCache enables result caching for this interrupt node: a
// cache hit replays the previously-supplied response instead of pausing
// again.
func WithInterruptCache(enabled bool) InterruptOption {
	return func(n *InterruptNode) { n.cache = enabled }
}

// NewInterruptNode builds an interrupt node. inputParam is the name shown
// to the caller on pause; outputParam is where the caller's response is
// written on resume.
func NewInterruptNode(name, inputParam, outputParam string, responseType reflect.Type, opts ...InterruptOption) (*InterruptNode, error) {
	if !IsLegalName(inputParam) {
		return nil, &GraphConfigError{Message: fmt.Sprintf("input_param must be a legal identifier, got %q", inputParam)}
	}
	if !IsLegalName(outputParam) {
		return nil, &GraphConfigError{Message: fmt.Sprintf("output_param must be a legal identifier, got %q", outputParam)}
	}
	n := &InterruptNode{
		base:         base{name: name, inputs: []string{inputParam}, outputs: []string{outputParam}},
		responseType: responseType,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func (n *InterruptNode) Kind() Kind { return KindInterrupt }

func (n *InterruptNode) InputParam() string  { return n.inputs[0] }
func (n *InterruptNode) OutputParam() string { return n.outputs[0] }

// CacheEnabled reports whether this interrupt node was constructed with
// WithInterruptCache(true); off by default.
func (n *InterruptNode) CacheEnabled() bool { return n.cache }

func (n *InterruptNode) DefinitionHash() string {
	label := "None"
	if n.responseType != nil {
		label = n.responseType.String()
	}
	return hashParts("InterruptNode", n.name, fmt.Sprint(n.inputs), fmt.Sprint(n.outputs), label)
}

func (n *InterruptNode) HasDefault(string) bool { return false }
func (n *InterruptNode) GetDefault(string) any  { return nil }

func (n *InterruptNode) InputType(string) reflect.Type { return nil }

func (n *InterruptNode) OutputType(output string) reflect.Type {
	if output == n.OutputParam() {
		return n.responseType
	}
	return nil
}

// WithHandler returns a new InterruptNode carrying handler (immutable
// update — the original is unaffected).
func (n *InterruptNode) WithHandler(handler InterruptHandler) *InterruptNode {
	c := *n
	c.handler = handler
	return &c
}

func (n *InterruptNode) Handler() InterruptHandler { return n.handler }

func (n *InterruptNode) WithName(name string) (Node, error) {
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

func (n *InterruptNode) WithInputs(mapping map[string]string) (Node, error) {
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

func (n *InterruptNode) WithOutputs(mapping map[string]string) (Node, error) {
	c := n.clone()
	renamed, hist, err := applyRename(c.outputs, mapping, "outputs", c.renameHistory)
	if err != nil {
		return nil, err
	}
	c.outputs, c.renameHistory = renamed, hist
	nn := *n
	nn.base = c
	return &nn, nil
}
