package graph

import (
	"context"
	"testing"
)

func TestValidateOutputConflicts(t *testing.T) {
	t.Run("unconstrained dual producers is rejected", func(t *testing.T) {
		a := NewFuncNode("a", nil, []string{"y"}, echoFunc("x", "y"))
		b := NewFuncNode("b", nil, []string{"y"}, echoFunc("x", "y"))
		_, err := New([]Node{a, b})
		if err == nil {
			t.Fatal("expected an output-conflict error")
		}
		if _, ok := err.(*GraphConfigError); !ok {
			t.Errorf("expected *GraphConfigError, got %T", err)
		}
	})

	t.Run("mutually exclusive gate branches are allowed", func(t *testing.T) {
		left := NewFuncNode("left", nil, []string{"result"}, echoFunc("x", "result"))
		right := NewFuncNode("right", nil, []string{"result"}, echoFunc("x", "result"))
		gate := NewRouteNode("gate", []string{"cond"}, []string{"left", "right"}, func(ctx context.Context, in map[string]any) (any, error) {
			return "left", nil
		}, false)

		_, err := New([]Node{gate, left, right})
		if err != nil {
			t.Fatalf("expected mutex branches to be allowed, got: %v", err)
		}
	})

	t.Run("producers nested downstream of mutually exclusive gate branches are allowed", func(t *testing.T) {
		// gate -> {leftChild, rightChild}, each one hop further than the
		// gate's direct targets, both eventually producing "result".
		// Neither leftChild nor rightChild is itself a gate target, so this
		// exercises exclusive-reachability beyond direct membership.
		leftBranch := NewFuncNode("leftBranch", nil, []string{"leftOut"}, echoFunc("x", "leftOut"))
		rightBranch := NewFuncNode("rightBranch", nil, []string{"rightOut"}, echoFunc("x", "rightOut"))
		leftChild := NewFuncNode("leftChild", []string{"leftOut"}, []string{"result"}, echoFunc("leftOut", "result"))
		rightChild := NewFuncNode("rightChild", []string{"rightOut"}, []string{"result"}, echoFunc("rightOut", "result"))
		gate := NewRouteNode("gate", []string{"cond"}, []string{"leftBranch", "rightBranch"}, func(ctx context.Context, in map[string]any) (any, error) {
			return "leftBranch", nil
		}, false)

		_, err := New([]Node{gate, leftBranch, rightBranch, leftChild, rightChild})
		if err != nil {
			t.Fatalf("expected nodes nested downstream of mutex branches to be allowed, got: %v", err)
		}
	})

	t.Run("ordered producers via a surviving edge are allowed", func(t *testing.T) {
		// a -> b carries the non-contested "token", so the edge survives the
		// removal of edges carrying only "shared".
		a := NewFuncNode("a", []string{"x"}, []string{"shared", "token"}, func(ctx context.Context, in map[string]any) (map[string]any, error) {
			return map[string]any{"shared": in["x"], "token": in["x"]}, nil
		})
		b := NewFuncNode("b", []string{"token"}, []string{"shared"}, echoFunc("token", "shared"))
		_, err := New([]Node{a, b})
		if err != nil {
			t.Fatalf("expected ordered producers to be allowed, got: %v", err)
		}
	})
}

func TestHasPath(t *testing.T) {
	adj := map[string][]string{
		"a": {"b"},
		"b": {"c"},
	}
	if !hasPath(adj, "a", "c") {
		t.Error("expected a path from a to c")
	}
	if hasPath(adj, "c", "a") {
		t.Error("expected no path from c to a")
	}
	if !hasPath(adj, "a", "a") {
		t.Error("expected a trivial path from a to itself")
	}
}
