// Package cache provides a disk-backed graph.Cache implementation, for
// callers who want cached node results to survive a process restart
// without standing up a separate store.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dshills/hypergraph-go/graph"
	_ "modernc.org/sqlite"
)

// DiskCache is a SQLite-backed graph.Cache. It reuses modernc.org/sqlite —
// the same driver the checkpointer store uses — rather than introducing a
// second disk-cache dependency for what is, at bottom, a single
// key/value table with an upsert.
type DiskCache struct {
	db *sql.DB
	mu sync.Mutex
}

// NewDiskCache opens (creating if necessary) a SQLite database at path and
// ensures its schema exists.
func NewDiskCache(path string) (*DiskCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS node_cache (
			key          TEXT PRIMARY KEY,
			outputs_json TEXT NOT NULL,
			has_decision INTEGER NOT NULL,
			decision_json TEXT
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &DiskCache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *DiskCache) Close() error { return c.db.Close() }

// Get implements graph.Cache.
func (c *DiskCache) Get(key string) (graph.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var outputsJSON string
	var hasDecision int
	var decisionJSON sql.NullString
	row := c.db.QueryRow(`SELECT outputs_json, has_decision, decision_json FROM node_cache WHERE key = ?`, key)
	if err := row.Scan(&outputsJSON, &hasDecision, &decisionJSON); err != nil {
		return graph.CacheEntry{}, false
	}

	var outputs map[string]any
	if err := json.Unmarshal([]byte(outputsJSON), &outputs); err != nil {
		return graph.CacheEntry{}, false
	}
	entry := graph.CacheEntry{Outputs: outputs, HasDecision: hasDecision != 0}
	if entry.HasDecision && decisionJSON.Valid {
		if err := json.Unmarshal([]byte(decisionJSON.String), &entry.Decision); err != nil {
			return graph.CacheEntry{}, false
		}
	}
	return entry, true
}

// Set implements graph.Cache.
func (c *DiskCache) Set(key string, entry graph.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	outputsJSON, err := json.Marshal(entry.Outputs)
	if err != nil {
		return
	}
	var decisionJSON sql.NullString
	if entry.HasDecision {
		b, err := json.Marshal(entry.Decision)
		if err == nil {
			decisionJSON = sql.NullString{String: string(b), Valid: true}
		}
	}
	_, _ = c.db.Exec(`
		INSERT INTO node_cache (key, outputs_json, has_decision, decision_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			outputs_json = excluded.outputs_json,
			has_decision = excluded.has_decision,
			decision_json = excluded.decision_json
	`, key, string(outputsJSON), boolToInt(entry.HasDecision), decisionJSON)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
