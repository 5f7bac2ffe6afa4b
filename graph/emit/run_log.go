package emit

import "time"

// NodeLogEntry is one node's recorded outcome within a RunLog:
// timing, status, and (for gates) the decision it made. Nested subgraph
// executions attach their own inner RunLog so a caller inspecting the
// outer run's trace can drill into exactly which branch of the nested
// graph ran, without a separate query.
type NodeLogEntry struct {
	NodeName string
	Status   string // "completed", "failed", "cached"
	Duration time.Duration
	Decision any
	Error    string
	Inner    *RunLog // set when NodeName is a subgraph node
}

// RunLog is the always-on passive trace a run collects: one entry per
// node-start event, in start order, filled in by that node's
// node-end/node-error/route-decision events, regardless of whether any
// other processor is attached.
type RunLog struct {
	RunID   string
	Entries []NodeLogEntry
}

// RunLogCollector is the Processor that builds a RunLog as events arrive.
// It is always registered by the runner in addition to whatever processors
// the caller supplied.
type RunLogCollector struct {
	log *RunLog
	// bySpan maps a node-start span id to the index of the entry created
	// for it in Entries, so the end/error event and any route-decision
	// event on that span update the same entry instead of creating a
	// duplicate.
	bySpan map[string]int
	// childLogs maps a subgraph node's span id to the collector gathering
	// its nested run's events (wired by the runner via Nest).
	childLogs map[string]*RunLogCollector
}

// NewRunLogCollector starts a collector for runID.
func NewRunLogCollector(runID string) *RunLogCollector {
	return &RunLogCollector{
		log:       &RunLog{RunID: runID},
		bySpan:    map[string]int{},
		childLogs: map[string]*RunLogCollector{},
	}
}

// Nest registers a child collector for a subgraph node's span id, so its
// RunLog is embedded into the parent entry once the parent node-end event
// arrives.
func (c *RunLogCollector) Nest(spanID string, child *RunLogCollector) {
	c.childLogs[spanID] = child
}

func (c *RunLogCollector) OnEvent(e Event) {
	switch e.Variant {
	case NodeStart:
		c.bySpan[e.SpanID] = len(c.log.Entries)
		c.log.Entries = append(c.log.Entries, NodeLogEntry{NodeName: e.NodeName})
	case NodeEnd:
		idx, ok := c.bySpan[e.SpanID]
		if !ok {
			return
		}
		entry := &c.log.Entries[idx]
		if cached, _ := e.Fields["cached"].(bool); cached {
			entry.Status = "cached"
		} else {
			entry.Status = "completed"
		}
		if d, ok := e.Duration(); ok {
			entry.Duration = d
		}
		if child, ok := c.childLogs[e.SpanID]; ok {
			entry.Inner = child.log
		}
	case NodeError:
		idx, ok := c.bySpan[e.SpanID]
		if !ok {
			return
		}
		entry := &c.log.Entries[idx]
		entry.Status = "failed"
		if msg, ok := e.Fields["error"].(string); ok {
			entry.Error = msg
		}
	case RouteDecision:
		idx, ok := c.bySpan[e.SpanID]
		if !ok {
			return
		}
		c.log.Entries[idx].Decision = e.Fields["decision"]
	}
}

func (c *RunLogCollector) Shutdown() {}

// Log returns the collected RunLog. Safe to call at any point; entries
// accumulate as events arrive.
func (c *RunLogCollector) Log() *RunLog { return c.log }
