package graph

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordNodeLatencyIncrementsExecutions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordNodeLatency("double", 12.5, "completed")

	if got := testutil.ToFloat64(m.nodeExecutions.WithLabelValues("double", "completed")); got != 1 {
		t.Errorf("expected 1 recorded execution, got %v", got)
	}
}

func TestMetricsDisableSuppressesRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Disable()

	m.RecordCacheHit("double")
	m.RecordCacheMiss("double")

	if got := testutil.CollectAndCount(m.cacheHits); got != 0 {
		t.Errorf("expected no cache hit series while disabled, got %d", got)
	}
	if got := testutil.CollectAndCount(m.cacheMisses); got != 0 {
		t.Errorf("expected no cache miss series while disabled, got %d", got)
	}

	m.Enable()
	m.RecordCacheHit("double")
	if got := testutil.ToFloat64(m.cacheHits.WithLabelValues("double")); got != 1 {
		t.Errorf("expected cache hit to record after re-enabling, got %v", got)
	}
}

func TestRunnerWithMetricsRecordsRoutingDecision(t *testing.T) {
	left := NewFuncNode("left", nil, []string{"result"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"result": "left"}, nil
	})
	right := NewFuncNode("right", nil, []string{"result"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"result": "right"}, nil
	})
	gate := NewRouteNode("gate", nil, []string{"left", "right"}, func(ctx context.Context, in map[string]any) (any, error) {
		return "left", nil
	}, false)

	g, err := New([]Node{gate, left, right})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := NewSequentialRunner(WithRunnerMetrics(m))

	res, err := r.Run(context.Background(), g, map[string]any{}, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("expected completed, got %v (err=%v)", res.Status, res.Error)
	}

	if got := testutil.ToFloat64(m.routingDecisions.WithLabelValues("gate", "left")); got != 1 {
		t.Errorf("expected 1 routing decision recorded for gate->left, got %v", got)
	}
	if got := testutil.CollectAndCount(m.nodeExecutions); got < 2 {
		t.Errorf("expected at least 2 distinct node execution series, got %d", got)
	}
}
