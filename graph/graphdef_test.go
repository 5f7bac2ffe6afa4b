package graph

import (
	"context"
	"testing"
)

func echoFunc(in, out string) Func {
	return func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return map[string]any{out: inputs[in]}, nil
	}
}

func TestGraphNew(t *testing.T) {
	t.Run("builds a simple linear graph", func(t *testing.T) {
		a := NewFuncNode("a", []string{"x"}, []string{"y"}, echoFunc("x", "y"))
		b := NewFuncNode("b", []string{"y"}, []string{"z"}, echoFunc("y", "z"))

		g, err := New([]Node{a, b})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(g.NodeNames()) != 2 {
			t.Errorf("expected 2 nodes, got %v", g.NodeNames())
		}
	})

	t.Run("duplicate node name is rejected", func(t *testing.T) {
		a1 := NewFuncNode("a", nil, []string{"y"}, echoFunc("x", "y"))
		a2 := NewFuncNode("a", nil, []string{"z"}, echoFunc("x", "z"))
		_, err := New([]Node{a1, a2})
		if err == nil {
			t.Fatal("expected duplicate name error")
		}
	})

	t.Run("inputspec marks unbound param required", func(t *testing.T) {
		a := NewFuncNode("a", []string{"x"}, []string{"y"}, echoFunc("x", "y"))
		g, err := New([]Node{a})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		found := false
		for _, p := range g.InputSpec().Required {
			if p == "x" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected x to be required, spec: %+v", g.InputSpec())
		}
	})
}

func TestGraphBind(t *testing.T) {
	a := NewFuncNode("a", []string{"x"}, []string{"y"}, echoFunc("x", "y"))
	g, err := New([]Node{a})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bound := g.Bind(map[string]any{"x": 42})
	for _, p := range bound.InputSpec().Required {
		if p == "x" {
			t.Errorf("expected x to no longer be required after bind, spec: %+v", bound.InputSpec())
		}
	}
	// original graph is unaffected
	found := false
	for _, p := range g.InputSpec().Required {
		if p == "x" {
			found = true
		}
	}
	if !found {
		t.Error("expected original graph's input spec to be unchanged")
	}
}

func TestGraphWithEntrypoint(t *testing.T) {
	a := NewFuncNode("a", []string{"x"}, []string{"y"}, echoFunc("x", "y"))
	b := NewFuncNode("b", []string{"y"}, []string{"z"}, echoFunc("y", "z"))
	g, err := New([]Node{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ng, err := g.WithEntrypoint("b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := ng.NodeNames()
	if len(names) != 1 || names[0] != "b" {
		t.Errorf("expected only b active, got %v", names)
	}

	_, err = g.WithEntrypoint("nope")
	if err == nil {
		t.Fatal("expected error for unknown entrypoint")
	}
}

func TestGraphSelect(t *testing.T) {
	a := NewFuncNode("a", []string{"x"}, []string{"y"}, echoFunc("x", "y"))
	b := NewFuncNode("b", []string{"y"}, []string{"z"}, echoFunc("y", "z"))
	g, err := New([]Node{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ng, err := g.Select("y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := ng.NodeNames()
	if len(names) != 1 || names[0] != "a" {
		t.Errorf("expected only a active (producer of y), got %v", names)
	}

	_, err = g.Select("nonexistent")
	if err == nil {
		t.Fatal("expected error selecting an output nothing produces")
	}
}

func TestGraphDefinitionHashStable(t *testing.T) {
	a := NewFuncNode("a", []string{"x"}, []string{"y"}, echoFunc("x", "y"))
	g1, err := New([]Node{a})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g2, err := New([]Node{a})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g1.DefinitionHash() != g2.DefinitionHash() {
		t.Error("expected identical graphs to hash identically")
	}
}
