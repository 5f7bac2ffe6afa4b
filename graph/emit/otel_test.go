package emit

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOTelProcessorEmitsSpanPerNode(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	proc := NewOTelProcessor(tp.Tracer("hypergraph-test"))

	proc.OnEvent(Event{Variant: RunStart, RunID: "r1", SpanID: "run-span"})
	proc.OnEvent(Event{Variant: NodeStart, RunID: "r1", SpanID: "node-span", ParentSpanID: "run-span", NodeName: "double"})
	proc.OnEvent(Event{Variant: NodeEnd, RunID: "r1", SpanID: "node-span", Fields: map[string]any{"duration_ms": 4.0}})
	proc.OnEvent(Event{Variant: RunEnd, RunID: "r1", SpanID: "run-span"})

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 ended spans, got %d", len(spans))
	}

	var nodeSpan, runSpan *tracetest.SpanStub
	for i := range spans {
		switch spans[i].Name {
		case string(NodeStart):
			nodeSpan = &spans[i]
		case string(RunStart):
			runSpan = &spans[i]
		}
	}
	if nodeSpan == nil || runSpan == nil {
		t.Fatal("expected to find the node_start and run_start spans")
	}
	if nodeSpan.Parent.SpanID() != runSpan.SpanContext.SpanID() {
		t.Error("expected node span's parent to be the run span")
	}
}

func TestOTelProcessorRecordsErrorStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	proc := NewOTelProcessor(tp.Tracer("hypergraph-test"))

	proc.OnEvent(Event{Variant: NodeStart, RunID: "r1", SpanID: "node-span", NodeName: "boom"})
	proc.OnEvent(Event{Variant: NodeError, RunID: "r1", SpanID: "node-span", Fields: map[string]any{"error": "boom"}})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Status.Code.String() != "Error" {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}
}
