package graph

import (
	"context"
	"testing"
)

func TestRunnerRunLinearGraph(t *testing.T) {
	double := NewFuncNode("double", []string{"x"}, []string{"y"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"y": in["x"].(int) * 2}, nil
	})
	increment := NewFuncNode("increment", []string{"y"}, []string{"z"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return map[string]any{"z": in["y"].(int) + 1}, nil
	})

	g, err := New([]Node{double, increment})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewSequentialRunner()
	res, err := r.Run(context.Background(), g, map[string]any{"x": 3}, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("expected completed, got %v (err=%v)", res.Status, res.Error)
	}
	if z, _ := res.Get("z"); z != 7 {
		t.Errorf("expected z=7, got %v", z)
	}
	if res.RunID == "" {
		t.Error("expected a non-empty run id")
	}
}

func TestRunnerMissingRequiredInput(t *testing.T) {
	a := NewFuncNode("a", []string{"x"}, []string{"y"}, echoFunc("x", "y"))
	g, err := New([]Node{a})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewSequentialRunner()
	_, err = r.Run(context.Background(), g, map[string]any{}, RunOptions{})
	if err == nil {
		t.Fatal("expected missing input error")
	}
	if _, ok := err.(*MissingInputError); !ok {
		t.Errorf("expected *MissingInputError, got %T", err)
	}
}

func TestRunnerContinueModeCapturesNodeFailure(t *testing.T) {
	boom := NewFuncNode("boom", []string{"x"}, []string{"y"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return nil, errBoom
	})
	g, err := New([]Node{boom})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewSequentialRunner()
	res, err := r.Run(context.Background(), g, map[string]any{"x": 1}, RunOptions{ErrorHandling: ErrorContinue})
	if err != nil {
		t.Fatalf("continue mode should not return a Go error, got %v", err)
	}
	if res.Status != StatusFailed {
		t.Errorf("expected failed status, got %v", res.Status)
	}
}

func TestRunnerRaiseModeReturnsError(t *testing.T) {
	boom := NewFuncNode("boom", []string{"x"}, []string{"y"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
		return nil, errBoom
	})
	g, err := New([]Node{boom})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewSequentialRunner()
	_, err = r.Run(context.Background(), g, map[string]any{"x": 1}, RunOptions{ErrorHandling: ErrorRaise})
	if err == nil {
		t.Fatal("expected an error in raise mode")
	}
}

var errBoom = &nodeBoomError{}

type nodeBoomError struct{}

func (e *nodeBoomError) Error() string { return "boom" }
