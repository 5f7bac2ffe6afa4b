package graph

import "fmt"

// PauseInfo describes the interrupt that paused a run.
type PauseInfo struct {
	NodeName    string
	OutputParam string
	Value       any
}

// ResponseKey returns the dotted path this pause is addressable by on
// resume. Interrupts inside nested subgraphs get their NodeName rewritten
// to a slash-joined path ("outer/inner/leaf") as they propagate outward;
// ResponseKey turns that into a caller-facing dotted key
// ("outer.inner.output_param") used to supply the resume value.
func (p PauseInfo) ResponseKey() string {
	return dottedResponseKey(p.NodeName, p.OutputParam)
}

func dottedResponseKey(nodeName, outputParam string) string {
	prefix, _ := splitNodePath(nodeName)
	if prefix == "" {
		return outputParam
	}
	return prefix + "." + outputParam
}

// splitNodePath splits a slash-joined nested node name ("outer/inner/leaf")
// into its dotted prefix ("outer.inner") and leaf component ("leaf").
func splitNodePath(nodeName string) (prefix, leaf string) {
	last := -1
	for i, r := range nodeName {
		if r == '/' {
			last = i
		}
	}
	if last < 0 {
		return "", nodeName
	}
	dotted := ""
	for _, r := range nodeName[:last] {
		if r == '/' {
			dotted += "."
		} else {
			dotted += string(r)
		}
	}
	return dotted, nodeName[last+1:]
}

// PauseSignal is the control-flow channel used by interrupt nodes. It is deliberately not matched by the
// ordinary error taxonomy's sentinels: scheduler code must check for it
// with errors.As *before* any generic "treat as a node failure" handling,
// mirroring the Python original's choice to subclass BaseException instead
// of Exception so a bare `except Exception` does not swallow it.
type PauseSignal struct {
	Info PauseInfo
}

func (p *PauseSignal) Error() string {
	return fmt.Sprintf("paused at %q waiting for %q", p.Info.NodeName, p.Info.OutputParam)
}

// rewrapNested rewrites a pause's node name with a nested path prefix when
// it propagates out of a subgraph executor, so pauses surface an
// addressable dotted key through arbitrary nesting depth.
func (p *PauseSignal) rewrapNested(outerNodeName string) *PauseSignal {
	return &PauseSignal{Info: PauseInfo{
		NodeName:    outerNodeName + "/" + p.Info.NodeName,
		OutputParam: p.Info.OutputParam,
		Value:       p.Info.Value,
	}}
}
