// Package emit implements the structured event stream a run emits:
// an immutable Event type, a fan-out Dispatcher, and a handful of
// processors (a slog-based logger, a no-op, an OpenTelemetry span
// processor, and the always-on trace collector that produces a RunLog).
package emit

import "time"

// Variant discriminates the closed set of event shapes a run emits.
type Variant string

const (
	RunStart        Variant = "run_start"
	RunEnd          Variant = "run_end"
	SuperstepStart  Variant = "superstep_start"
	NodeStart       Variant = "node_start"
	NodeEnd         Variant = "node_end"
	NodeError       Variant = "node_error"
	CacheHit        Variant = "cache_hit"
	RouteDecision   Variant = "route_decision"
	Interrupt       Variant = "interrupt"
)

// Event is an immutable record describing one occurrence during a run.
// Every event carries the four common fields; Fields holds the
// variant-specific extras for that event's Variant.
type Event struct {
	Variant      Variant
	RunID        string
	SpanID       string
	ParentSpanID string
	Timestamp    time.Time

	// Common optional identifiers, present on most node-scoped variants.
	NodeName  string
	GraphName string

	// Fields holds variant-specific extras (graph name, workflow id, error
	// text, duration, cache key, decision, …) keyed by name, one map per
	// event instead of one struct per variant.
	Fields map[string]any
}

// Duration reads the "duration_ms" field, if present.
func (e Event) Duration() (time.Duration, bool) {
	v, ok := e.Fields["duration_ms"].(float64)
	if !ok {
		return 0, false
	}
	return time.Duration(v * float64(time.Millisecond)), true
}

// Processor consumes events emitted by a Dispatcher. A failing processor
// must not interrupt execution unless the dispatcher runs in strict
// mode.
type Processor interface {
	OnEvent(e Event)
	// Shutdown releases any resources the processor holds; called once
	// when the owning runner finishes. Optional no-op for simple
	// processors.
	Shutdown()
}
