package cache

import (
	"path/filepath"
	"testing"

	"github.com/dshills/hypergraph-go/graph"
)

func openTestCache(t *testing.T) *DiskCache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := NewDiskCache(path)
	if err != nil {
		t.Fatalf("unexpected error opening disk cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDiskCacheSetGet(t *testing.T) {
	c := openTestCache(t)

	entry := graph.CacheEntry{Outputs: map[string]any{"y": "hello"}}
	c.Set("k1", entry)

	got, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.Outputs["y"] != "hello" {
		t.Errorf("unexpected outputs: %+v", got.Outputs)
	}
}

func TestDiskCacheMiss(t *testing.T) {
	c := openTestCache(t)
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected a miss for an unknown key")
	}
}

func TestDiskCacheStoresGateDecision(t *testing.T) {
	c := openTestCache(t)

	entry := graph.CacheEntry{HasDecision: true, Decision: "left"}
	c.Set("k1", entry)

	got, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected a hit")
	}
	if !got.HasDecision || got.Decision != "left" {
		t.Errorf("expected decision to round-trip, got %+v", got)
	}
}

func TestDiskCacheOverwriteUpserts(t *testing.T) {
	c := openTestCache(t)

	c.Set("k1", graph.CacheEntry{Outputs: map[string]any{"y": 1}})
	c.Set("k1", graph.CacheEntry{Outputs: map[string]any{"y": 2}})

	got, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.Outputs["y"].(float64) != 2 {
		t.Errorf("expected latest value to win, got %v", got.Outputs["y"])
	}
}
