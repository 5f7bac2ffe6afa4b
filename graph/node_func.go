package graph

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
)

// Func is the shape every function node wraps. Inputs are supplied as a
// map keyed by parameter name (already translated back to the callable's
// own parameter names via MapInputsToFuncParams); outputs are returned the
// same way, keyed by output name.
type Func func(ctx context.Context, inputs map[string]any) (map[string]any, error)

// FuncNode wraps a Func as a node. Construct with
// NewFuncNode; use the With* options to configure defaults, caching,
// wait-for ordering, and emit-only outputs.
type FuncNode struct {
	base
	fn       Func
	defaults map[string]any
	cache    bool
	defTag   string
}

// FuncOption configures a FuncNode at construction time.
type FuncOption func(*FuncNode)

// WithDefaults attaches signature-default values for input parameters.
// Go functions have no native default-argument syntax, so defaults are
// declared explicitly; everything downstream (input-spec categorization,
// consistent-default validation, input collection) treats them exactly as
// the original's signature defaults.
func WithDefaults(defaults map[string]any) FuncOption {
	return func(n *FuncNode) {
		n.defaults = defaults
	}
}

// WithCache enables result caching for this node. Only function and
// interrupt nodes may be cached.
func WithCache(enabled bool) FuncOption {
	return func(n *FuncNode) { n.cache = enabled }
}

// WithWaitFor declares ordering-only inputs.
func WithWaitFor(names ...string) FuncOption {
	return func(n *FuncNode) { n.waitFor = names }
}

// WithEmitOutputs marks outputs that exist only to trigger dependents.
func WithEmitOutputs(names ...string) FuncOption {
	return func(n *FuncNode) { n.emitOutputs = names }
}

// WithHide marks a node as a visualization hint only; it carries no
// execution semantics.
func WithHide(hidden bool) FuncOption {
	return func(n *FuncNode) { n.hide = hidden }
}

// WithDefinitionTag overrides the default definition-hash content tag. The
// default tag is derived from the Go runtime's fully-qualified function
// name, which is stable across builds but (unlike the Python original's
// SHA-256 of source text) does not change when the function body changes
// without a renamed/relocated declaration. Callers who need precise
// change-detection across behavior edits should supply an explicit tag
// (e.g. a version string bumped alongside the function).
func WithDefinitionTag(tag string) FuncOption {
	return func(n *FuncNode) { n.defTag = tag }
}

// NewFuncNode builds a function node named name, wrapping fn, with the
// given ordered input parameter names and output value names.
func NewFuncNode(name string, inputs, outputs []string, fn Func, opts ...FuncOption) *FuncNode {
	n := &FuncNode{
		base: base{name: name, inputs: inputs, outputs: outputs},
		fn:   fn,
	}
	n.defTag = runtimeFuncTag(fn)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func runtimeFuncTag(fn Func) string {
	ptr := reflect.ValueOf(fn).Pointer()
	if rf := runtime.FuncForPC(ptr); rf != nil {
		return rf.Name()
	}
	return "anonymous"
}

func (n *FuncNode) Kind() Kind { return KindFunc }

func (n *FuncNode) DefinitionHash() string {
	return hashParts("FuncNode", n.name, fmt.Sprint(n.inputs), fmt.Sprint(n.outputs), n.defTag)
}

func (n *FuncNode) HasDefault(param string) bool {
	_, ok := n.defaults[param]
	return ok
}

func (n *FuncNode) GetDefault(param string) any { return n.defaults[param] }

func (n *FuncNode) InputType(string) reflect.Type  { return nil }
func (n *FuncNode) OutputType(string) reflect.Type { return nil }

func (n *FuncNode) CacheEnabled() bool { return n.cache }

// Run invokes the wrapped callable. The scheduler calls this after
// consulting the cache and translating input names via
// MapInputsToFuncParams.
func (n *FuncNode) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	return n.fn(ctx, inputs)
}

func (n *FuncNode) WithName(name string) (Node, error) {
	c := n.clone()
	renamed, hist, err := applyRename([]string{c.name}, map[string]string{c.name: name}, "name", c.renameHistory)
	if err != nil {
		return nil, err
	}
	c.name = renamed[0]
	c.renameHistory = hist
	nn := *n
	nn.base = c
	return &nn, nil
}

func (n *FuncNode) WithInputs(mapping map[string]string) (Node, error) {
	c := n.clone()
	renamed, hist, err := applyRename(c.inputs, mapping, "inputs", c.renameHistory)
	if err != nil {
		return nil, err
	}
	c.inputs = renamed
	c.renameHistory = hist
	nn := *n
	nn.base = c
	nn.defaults = remapKeys(n.defaults, mapping)
	return &nn, nil
}

func (n *FuncNode) WithOutputs(mapping map[string]string) (Node, error) {
	c := n.clone()
	renamed, hist, err := applyRename(c.outputs, mapping, "outputs", c.renameHistory)
	if err != nil {
		return nil, err
	}
	c.outputs = renamed
	c.renameHistory = hist
	nn := *n
	nn.base = c
	return &nn, nil
}

func remapKeys(m map[string]any, mapping map[string]string) map[string]any {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nk, ok := mapping[k]; ok {
			out[nk] = v
		} else {
			out[k] = v
		}
	}
	return out
}
