package graph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoProgress describes the state in which the scheduler finds no ready
// nodes. Nothing in this module returns it: the superstep loop simply
// ends when the ready set is empty. It is exported for callers
// distinguishing "graph is done" diagnostics.
var ErrNoProgress = errors.New("no ready nodes remain")

// GraphConfigError is raised at build time: name illegality, keyword
// use, name-space collision, default inconsistency, an output conflict
// without mutex/ordering, an unresolved gate target, a strict-type
// mismatch, caching on a disallowed node kind, a subgraph-name/output
// collision, or a non-copyable signature default.
type GraphConfigError struct {
	Node    string
	Param   string
	Message string
	Hint    string
}

func (e *GraphConfigError) Error() string {
	msg := e.Message
	if e.Node != "" {
		msg = fmt.Sprintf("%s (node %q)", msg, e.Node)
	}
	if e.Param != "" {
		msg = fmt.Sprintf("%s (param %q)", msg, e.Param)
	}
	if e.Hint != "" {
		msg = fmt.Sprintf("%s\nHow to fix: %s", msg, e.Hint)
	}
	return msg
}

// MissingInputError is raised at run time when a required parameter was
// never supplied.
type MissingInputError struct {
	Missing  []string
	Provided []string
}

func (e *MissingInputError) Error() string {
	m := append([]string{}, e.Missing...)
	sort.Strings(m)
	return fmt.Sprintf("missing required input(s) %v; provided: %v", m, e.Provided)
}

// RouteInvalidError is raised when a routing gate returns a target outside
// its declared set, or a value of the wrong cardinality.
type RouteInvalidError struct {
	Gate     string
	Decision any
	Valid    []string
}

func (e *RouteInvalidError) Error() string {
	return fmt.Sprintf("gate %q returned invalid decision %#v; valid targets: %v", e.Gate, e.Decision, e.Valid)
}

// InfiniteLoopError is raised when max_iterations is exceeded while ready
// nodes remain.
type InfiniteLoopError struct {
	MaxIterations int
}

func (e *InfiniteLoopError) Error() string {
	return fmt.Sprintf("exceeded max_iterations=%d with ready nodes still pending", e.MaxIterations)
}

// NodeExecutionError wraps a node callable's error with the partial state
// snapshot taken at superstep entry, extended with any sibling outputs that
// did succeed in the same superstep.
type NodeExecutionError struct {
	NodeName     string
	Cause        error
	PartialState map[string]any
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.NodeName, e.Cause)
}

func (e *NodeExecutionError) Unwrap() error { return e.Cause }

// IncompatibleRunnerError is raised when a graph uses a feature the
// selected runner does not support.
type IncompatibleRunnerError struct {
	NodeName   string
	Capability string
}

func (e *IncompatibleRunnerError) Error() string {
	return fmt.Sprintf("node %q requires capability %q, unsupported by this runner", e.NodeName, e.Capability)
}
