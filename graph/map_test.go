package graph

import (
	"context"
	"testing"
)

func TestRunnerMapZipSequential(t *testing.T) {
	double := NewFuncNode("double", []string{"x"}, []string{"y"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"y": in["x"].(int) * 2}, nil
	})
	g, err := New([]Node{double})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewSequentialRunner()
	results, err := r.Map(context.Background(), g, map[string]any{"x": []any{1, 2, 3}}, MapOptions{MapOver: []string{"x"}, MapMode: MapModeZip})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []int{2, 4, 6} {
		got, _ := results[i].Get("y")
		if got != want {
			t.Errorf("result[%d]: expected y=%d, got %v", i, want, got)
		}
	}
}

func TestRunnerMapConcurrentPreservesOrder(t *testing.T) {
	double := NewFuncNode("double", []string{"x"}, []string{"y"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"y": in["x"].(int) * 2}, nil
	})
	g, err := New([]Node{double})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewConcurrentRunner(4)
	results, err := r.Map(context.Background(), g, map[string]any{"x": []any{1, 2, 3, 4, 5}}, MapOptions{MapOver: []string{"x"}, MapMode: MapModeZip})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, want := range []int{2, 4, 6, 8, 10} {
		got, _ := results[i].Get("y")
		if got != want {
			t.Errorf("result[%d]: expected y=%d, got %v", i, want, got)
		}
	}
}

func TestRunnerMapContinueModeRecordsPerItemFailure(t *testing.T) {
	maybeFail := NewFuncNode("maybeFail", []string{"x"}, []string{"y"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		x := in["x"].(int)
		if x == 2 {
			return nil, errBoom
		}
		return map[string]any{"y": x}, nil
	})
	g, err := New([]Node{maybeFail})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewSequentialRunner()
	results, err := r.Map(context.Background(), g, map[string]any{"x": []any{1, 2, 3}}, MapOptions{
		MapOver: []string{"x"}, MapMode: MapModeZip, ErrorHandling: ErrorContinue,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[1].Status != StatusFailed {
		t.Errorf("expected item 1 to be failed, got %v", results[1].Status)
	}
	if results[0].Status != StatusCompleted || results[2].Status != StatusCompleted {
		t.Errorf("expected items 0 and 2 to complete, got %v and %v", results[0].Status, results[2].Status)
	}
}
