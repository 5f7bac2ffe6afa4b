package emit

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelProcessor is an optional tracing Processor: it mirrors
// the run/superstep/node span hierarchy described by each event's
// {run_id, span_id, parent_span_id} into OpenTelemetry spans. It is purely
// additive — the core's own span bookkeeping (run_id/span_id/parent_span_id
// on every Event) does not depend on OpenTelemetry being configured at
// all; attaching this processor is how a caller opts into exporting that
// hierarchy.
type OTelProcessor struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span // span_id -> open span
}

// NewOTelProcessor wraps tracer (e.g. otel.Tracer("hypergraph")).
func NewOTelProcessor(tracer trace.Tracer) *OTelProcessor {
	return &OTelProcessor{tracer: tracer, spans: map[string]trace.Span{}}
}

func (o *OTelProcessor) OnEvent(e Event) {
	switch e.Variant {
	case RunStart, SuperstepStart, NodeStart:
		o.startSpan(e)
	case RunEnd, NodeEnd:
		o.endSpan(e, false)
	case NodeError:
		o.endSpan(e, true)
	default:
		o.annotate(e)
	}
}

func (o *OTelProcessor) startSpan(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ctx := context.Background()
	if parent, ok := o.spans[e.ParentSpanID]; ok {
		ctx = trace.ContextWithSpan(ctx, parent)
	}
	_, span := o.tracer.Start(ctx, string(e.Variant))
	span.SetAttributes(attribute.String("hypergraph.run_id", e.RunID))
	if e.NodeName != "" {
		span.SetAttributes(attribute.String("hypergraph.node_name", e.NodeName))
	}
	for k, v := range e.Fields {
		setAttr(span, k, v)
	}
	o.spans[e.SpanID] = span
}

func (o *OTelProcessor) endSpan(e Event, failed bool) {
	o.mu.Lock()
	span, ok := o.spans[e.SpanID]
	if ok {
		delete(o.spans, e.SpanID)
	}
	o.mu.Unlock()
	if !ok {
		return
	}
	for k, v := range e.Fields {
		setAttr(span, k, v)
	}
	if failed {
		if msg, ok := e.Fields["error"].(string); ok {
			span.SetStatus(codes.Error, msg)
			span.RecordError(fmt.Errorf("%s", msg))
		}
	}
	span.End()
}

func (o *OTelProcessor) annotate(e Event) {
	o.mu.Lock()
	span, ok := o.spans[e.SpanID]
	o.mu.Unlock()
	if !ok {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(e.Fields)+1)
	attrs = append(attrs, attribute.String("variant", string(e.Variant)))
	for k, v := range e.Fields {
		attrs = append(attrs, keyValue(k, v))
	}
	span.AddEvent(string(e.Variant), trace.WithAttributes(attrs...))
}

func setAttr(span trace.Span, key string, v any) {
	span.SetAttributes(keyValue(key, v))
}

func keyValue(key string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case float64:
		return attribute.Float64(key, val)
	case bool:
		return attribute.Bool(key, val)
	default:
		return attribute.String(key, fmt.Sprintf("%v", val))
	}
}

func (o *OTelProcessor) Shutdown() {}
