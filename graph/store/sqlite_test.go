package store

import (
	"context"
	"testing"
)

func openTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("unexpected error opening sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreCreateAndUpdateRun(t *testing.T) {
	s := openTestSQLiteStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, "r1", "mygraph"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.UpdateRunStatus(ctx, "r1", StatusCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runs, err := s.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != StatusCompleted || runs[0].GraphName != "mygraph" {
		t.Errorf("unexpected runs: %+v", runs)
	}

	if err := s.UpdateRunStatus(ctx, "missing", StatusCompleted); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStoreSaveStepUpsertsAndFolds(t *testing.T) {
	s := openTestSQLiteStore(t)
	ctx := context.Background()
	if err := s.CreateRun(ctx, "r1", "mygraph"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := StepRecord{
		RunID:     "r1",
		Superstep: 0,
		NodeName:  "double",
		NodeKind:  "func",
		Status:    StepCompleted,
		Values:    map[string]any{"y": 4.0},
	}
	if err := s.SaveStep(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.Values = map[string]any{"y": 8.0}
	if err := s.SaveStep(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	steps, err := s.GetSteps(ctx, "r1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("expected upsert to collapse to 1 step, got %d", len(steps))
	}

	state, err := s.GetState(ctx, "r1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state["y"] != 8.0 {
		t.Errorf("expected folded state y=8, got %v", state["y"])
	}
}

func TestSQLiteStoreGetStepsThroughSuperstep(t *testing.T) {
	s := openTestSQLiteStore(t)
	ctx := context.Background()
	if err := s.CreateRun(ctx, "r1", "mygraph"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, superstep := range []uint32{0, 1, 2} {
		rec := StepRecord{
			RunID:     "r1",
			Superstep: superstep,
			NodeName:  nodeNameFor(i),
			NodeKind:  "func",
			Status:    StepCompleted,
			Values:    map[string]any{"v": i},
		}
		if err := s.SaveStep(ctx, rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	through := uint32(1)
	steps, err := s.GetSteps(ctx, "r1", &through)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps through superstep 1, got %d", len(steps))
	}
}

func nodeNameFor(i int) string {
	return [...]string{"a", "b", "c"}[i]
}
