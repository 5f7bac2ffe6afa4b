package graph

import "reflect"

// MapConfig causes the runner to broadcast one or more of a subgraph node's
// inputs as lists and collect its outputs into lists.
type MapConfig struct {
	// Params lists the input parameter names whose values are lists to
	// broadcast across invocations.
	Params []string
	// Mode is "zip" (pair up Params positionally) or "product" (cartesian
	// product across Params).
	Mode string
	// ErrorHandling is "raise" or "continue"; in "continue" mode a failed
	// iteration contributes nil at its index so list lengths stay aligned.
	ErrorHandling string
}

const (
	MapModeZip     = "zip"
	MapModeProduct = "product"
)

// SubgraphNode wraps a Graph for use as a node in another graph, enabling hierarchical composition.
type SubgraphNode struct {
	base
	graph     *Graph
	mapConfig *MapConfig
}

// NewSubgraphNode wraps g as a node named name (defaulting to g.Name() when
// name is empty).
func NewSubgraphNode(name string, g *Graph, mapConfig *MapConfig) (*SubgraphNode, error) {
	resolved := name
	if resolved == "" {
		resolved = g.name
	}
	if resolved == "" {
		return nil, &GraphConfigError{Message: "SubgraphNode requires a name: either set Graph.name or pass one explicitly"}
	}
	return &SubgraphNode{
		base: base{
			name:    resolved,
			inputs:  append([]string{}, g.inputSpec.All()...),
			outputs: append([]string{}, g.outputs()...),
		},
		graph:     g,
		mapConfig: mapConfig,
	}, nil
}

func (n *SubgraphNode) Kind() Kind          { return KindSubgraph }
func (n *SubgraphNode) Graph() *Graph       { return n.graph }
func (n *SubgraphNode) MapConfig() *MapConfig { return n.mapConfig }

func (n *SubgraphNode) DefinitionHash() string { return n.graph.DefinitionHash() }

func (n *SubgraphNode) HasDefault(param string) bool {
	_, ok := n.graph.bindings[param]
	return ok
}

func (n *SubgraphNode) GetDefault(param string) any { return n.graph.bindings[param] }

func (n *SubgraphNode) InputType(string) reflect.Type  { return nil }
func (n *SubgraphNode) OutputType(string) reflect.Type { return nil }

// CacheEnabled is always false: subgraph nodes have no cache_enabled
// invariant of their own — caching happens at the leaf level inside the
// nested run.
func (n *SubgraphNode) CacheEnabled() bool { return false }

func (n *SubgraphNode) WithName(name string) (Node, error) {
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

func (n *SubgraphNode) WithInputs(mapping map[string]string) (Node, error) {
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

func (n *SubgraphNode) WithOutputs(mapping map[string]string) (Node, error) {
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
