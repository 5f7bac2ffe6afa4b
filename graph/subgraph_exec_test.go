package graph

import (
	"context"
	"reflect"
	"testing"
)

func TestSubgraphExecOnceWrapsInnerGraph(t *testing.T) {
	inner := NewFuncNode("double", []string{"x"}, []string{"y"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"y": in["x"].(int) * 2}, nil
	})
	innerGraph, err := New([]Node{inner})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sub, err := NewSubgraphNode("inner", innerGraph, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outer, err := New([]Node{sub})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewSequentialRunner()
	res, err := r.Run(context.Background(), outer, map[string]any{"x": 5}, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("expected completed, got %v (err=%v)", res.Status, res.Error)
	}
	if v, _ := res.Get("y"); v != 10 {
		t.Errorf("expected y=10, got %v", v)
	}
}

func TestSubgraphExecPauseBubblesWithNestedPrefix(t *testing.T) {
	respType := reflect.TypeOf("")
	interrupt, err := NewInterruptNode("ask", "question", "answer", respType)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	innerGraph, err := New([]Node{interrupt})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sub, err := NewSubgraphNode("inner", innerGraph, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outer, err := New([]Node{sub})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewSequentialRunner()
	res, err := r.Run(context.Background(), outer, map[string]any{"question": "continue?"}, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusPaused {
		t.Fatalf("expected paused, got %v", res.Status)
	}
	if res.Pause == nil || res.Pause.NodeName != "inner/ask" {
		t.Fatalf("expected pause node name prefixed by the enclosing subgraph, got %+v", res.Pause)
	}
	if got := res.Pause.ResponseKey(); got != "inner.answer" {
		t.Errorf("expected dotted response key, got %q", got)
	}
}

func TestSubgraphExecMapBroadcastsAcrossInputs(t *testing.T) {
	inner := NewFuncNode("double", []string{"x"}, []string{"y"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"y": in["x"].(int) * 2}, nil
	})
	innerGraph, err := New([]Node{inner})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sub, err := NewSubgraphNode("inner", innerGraph, &MapConfig{Params: []string{"x"}, Mode: MapModeZip})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outer, err := New([]Node{sub})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewSequentialRunner()
	res, err := r.Run(context.Background(), outer, map[string]any{"x": []any{1, 2, 3}}, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("expected completed, got %v (err=%v)", res.Status, res.Error)
	}
	got, _ := res.Get("y")
	ys, ok := got.([]any)
	if !ok || len(ys) != 3 {
		t.Fatalf("expected a 3-element output list, got %v", got)
	}
	for i, want := range []int{2, 4, 6} {
		if ys[i] != want {
			t.Errorf("index %d: expected %d, got %v", i, want, ys[i])
		}
	}
}
