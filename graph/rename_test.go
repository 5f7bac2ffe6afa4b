package graph

import "testing"

func TestApplyRename(t *testing.T) {
	t.Run("simple rename", func(t *testing.T) {
		out, hist, err := applyRename([]string{"a", "b"}, map[string]string{"a": "x"}, "inputs", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out[0] != "x" || out[1] != "b" {
			t.Errorf("expected [x b], got %v", out)
		}
		if len(hist) != 1 || hist[0].Old != "a" || hist[0].New != "x" {
			t.Errorf("unexpected history: %+v", hist)
		}
	})

	t.Run("swap via parallel batch", func(t *testing.T) {
		out, _, err := applyRename([]string{"x", "y"}, map[string]string{"x": "y", "y": "x"}, "inputs", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out[0] != "y" || out[1] != "x" {
			t.Errorf("expected swap [y x], got %v", out)
		}
	})

	t.Run("rename unknown name fails", func(t *testing.T) {
		_, _, err := applyRename([]string{"a"}, map[string]string{"b": "c"}, "inputs", nil)
		if err == nil {
			t.Fatal("expected error for unknown rename source")
		}
	})

	t.Run("rename produces duplicate fails", func(t *testing.T) {
		_, _, err := applyRename([]string{"a", "b"}, map[string]string{"a": "b"}, "inputs", nil)
		if err == nil {
			t.Fatal("expected error for duplicate result")
		}
	})

	t.Run("rename chain hint surfaces prior rename", func(t *testing.T) {
		_, hist, err := applyRename([]string{"a"}, map[string]string{"a": "x"}, "inputs", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, _, err = applyRename([]string{"x"}, map[string]string{"a": "z"}, "inputs", hist)
		if err == nil {
			t.Fatal("expected error renaming an already-renamed name")
		}
		if got := err.Error(); got == "" {
			t.Error("expected a non-empty diagnostic message")
		}
	})
}

func TestBuildForwardReverseRenameMap(t *testing.T) {
	_, hist, err := applyRename([]string{"a", "b"}, map[string]string{"a": "x"}, "inputs", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fwd := buildForwardRenameMap(hist, "inputs")
	if fwd["a"] != "x" {
		t.Errorf("expected forward map a->x, got %v", fwd)
	}
	rev := buildReverseRenameMap(hist, "inputs")
	if rev["x"] != "a" {
		t.Errorf("expected reverse map x->a, got %v", rev)
	}
}
