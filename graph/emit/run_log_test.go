package emit

import (
	"testing"
	"time"
)

func TestRunLogCollectorCompletedNode(t *testing.T) {
	c := NewRunLogCollector("run-1")
	c.OnEvent(Event{Variant: NodeStart, SpanID: "s1", NodeName: "a"})
	c.OnEvent(Event{Variant: NodeEnd, SpanID: "s1", NodeName: "a", Fields: map[string]any{
		"cached": false, "duration_ms": 12.5,
	}})

	log := c.Log()
	if len(log.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(log.Entries))
	}
	e := log.Entries[0]
	if e.Status != "completed" {
		t.Errorf("expected completed, got %q", e.Status)
	}
	if e.Duration != 12*time.Millisecond+500*time.Microsecond {
		t.Errorf("unexpected duration: %v", e.Duration)
	}
}

func TestRunLogCollectorCachedNode(t *testing.T) {
	c := NewRunLogCollector("run-1")
	c.OnEvent(Event{Variant: NodeStart, SpanID: "s1", NodeName: "a"})
	c.OnEvent(Event{Variant: NodeEnd, SpanID: "s1", NodeName: "a", Fields: map[string]any{"cached": true}})

	if got := c.Log().Entries[0].Status; got != "cached" {
		t.Errorf("expected cached, got %q", got)
	}
}

func TestRunLogCollectorFailedNode(t *testing.T) {
	c := NewRunLogCollector("run-1")
	c.OnEvent(Event{Variant: NodeStart, SpanID: "s1", NodeName: "a"})
	c.OnEvent(Event{Variant: NodeError, SpanID: "s1", NodeName: "a", Fields: map[string]any{"error": "boom"}})

	entry := c.Log().Entries[0]
	if entry.Status != "failed" {
		t.Errorf("expected failed, got %q", entry.Status)
	}
	if entry.Error != "boom" {
		t.Errorf("expected error message boom, got %q", entry.Error)
	}
}

func TestRunLogCollectorNestsChildLog(t *testing.T) {
	parent := NewRunLogCollector("run-parent")
	child := NewRunLogCollector("run-child")
	parent.Nest("s1", child)

	parent.OnEvent(Event{Variant: NodeStart, SpanID: "s1", NodeName: "sub"})
	child.OnEvent(Event{Variant: NodeStart, SpanID: "c1", NodeName: "inner"})
	child.OnEvent(Event{Variant: NodeEnd, SpanID: "c1", NodeName: "inner", Fields: map[string]any{"cached": false}})
	parent.OnEvent(Event{Variant: NodeEnd, SpanID: "s1", NodeName: "sub", Fields: map[string]any{"cached": false}})

	entry := parent.Log().Entries[0]
	if entry.Inner == nil {
		t.Fatal("expected nested inner log")
	}
	if len(entry.Inner.Entries) != 1 || entry.Inner.Entries[0].NodeName != "inner" {
		t.Errorf("unexpected inner entries: %+v", entry.Inner.Entries)
	}
}

func TestEventDuration(t *testing.T) {
	e := Event{Fields: map[string]any{"duration_ms": 5.0}}
	d, ok := e.Duration()
	if !ok || d != 5*time.Millisecond {
		t.Errorf("expected 5ms, got %v (ok=%v)", d, ok)
	}

	e2 := Event{}
	if _, ok := e2.Duration(); ok {
		t.Error("expected no duration when field is absent")
	}
}
