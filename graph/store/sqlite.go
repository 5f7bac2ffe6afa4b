package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Checkpointer: every step and workflow
// record a run produces lands in a single-file database instead of the
// in-memory maps MemStore uses, so a run's step log survives a process
// restart. Good for development, single-process deployments, or local
// persistence ahead of migrating to SQLiteStore's MySQL sibling.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at path
// and ensures its schema exists. path may be ":memory:" for a
// process-local, non-durable database useful in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			graph_name  TEXT NOT NULL,
			workflow_id TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			created_at  TIMESTAMP NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id           TEXT NOT NULL,
			superstep        INTEGER NOT NULL,
			global_index     INTEGER NOT NULL,
			node_name        TEXT NOT NULL,
			node_kind        TEXT NOT NULL,
			status           TEXT NOT NULL,
			consumed_versions TEXT NOT NULL,
			values_json      TEXT,
			duration_ms      REAL NOT NULL,
			cached           INTEGER NOT NULL,
			decision_json    TEXT,
			error            TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMP NOT NULL,
			nested_run_id    TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, superstep, node_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_run_index ON steps(run_id, global_index)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create checkpoint schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle. Safe to call more than once.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, runID, graphName string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, graph_name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			graph_name = excluded.graph_name,
			updated_at = excluded.updated_at
	`, runID, graphName, string(StatusRunning), now, now)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status RunStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, updated_at = ? WHERE run_id = ?
	`, string(status), time.Now(), runID)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SaveStep(ctx context.Context, rec StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var idx int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(global_index), 0) + 1 FROM steps`).Scan(&idx)
	if err != nil {
		return fmt.Errorf("allocate step index: %w", err)
	}

	consumedJSON, err := json.Marshal(rec.ConsumedInputVersions)
	if err != nil {
		return fmt.Errorf("marshal consumed versions: %w", err)
	}
	valuesJSON, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}
	decisionJSON, err := json.Marshal(rec.Decision)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO steps (
			run_id, superstep, global_index, node_name, node_kind, status,
			consumed_versions, values_json, duration_ms, cached, decision_json,
			error, created_at, nested_run_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, superstep, node_name) DO UPDATE SET
			node_kind         = excluded.node_kind,
			status            = excluded.status,
			consumed_versions = excluded.consumed_versions,
			values_json       = excluded.values_json,
			duration_ms       = excluded.duration_ms,
			cached            = excluded.cached,
			decision_json     = excluded.decision_json,
			error             = excluded.error,
			nested_run_id     = excluded.nested_run_id
	`, rec.RunID, rec.Superstep, idx, rec.NodeName, string(rec.NodeKind), string(rec.Status),
		string(consumedJSON), string(valuesJSON), rec.DurationMS, boolToInt(rec.Cached), string(decisionJSON),
		rec.Error, createdAt, rec.NestedRunID)
	if err != nil {
		return fmt.Errorf("save step: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetState(ctx context.Context, runID string, throughSuperstep *uint32) (map[string]any, error) {
	steps, err := s.GetSteps(ctx, runID, throughSuperstep)
	if err != nil {
		return nil, err
	}
	return FoldState(steps), nil
}

func (s *SQLiteStore) GetSteps(ctx context.Context, runID string, throughSuperstep *uint32) ([]StepRecord, error) {
	query := `
		SELECT run_id, superstep, global_index, node_name, node_kind, status,
			consumed_versions, values_json, duration_ms, cached, decision_json,
			error, created_at, nested_run_id
		FROM steps WHERE run_id = ?`
	args := []any{runID}
	if throughSuperstep != nil {
		query += " AND superstep <= ?"
		args = append(args, *throughSuperstep)
	}
	query += " ORDER BY global_index ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StepRecord
	for rows.Next() {
		var (
			rec                            StepRecord
			idx                            int64
			consumedJSON, valuesJSON       string
			decisionJSON                   string
			cached                         int
		)
		if err := rows.Scan(&rec.RunID, &rec.Superstep, &idx, &rec.NodeName, &rec.NodeKind, &rec.Status,
			&consumedJSON, &valuesJSON, &rec.DurationMS, &cached, &decisionJSON,
			&rec.Error, &rec.CreatedAt, &rec.NestedRunID); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		rec.Index = uint64(idx)
		rec.Cached = cached != 0
		if err := json.Unmarshal([]byte(consumedJSON), &rec.ConsumedInputVersions); err != nil {
			return nil, fmt.Errorf("unmarshal consumed versions: %w", err)
		}
		if valuesJSON != "" && valuesJSON != "null" {
			if err := json.Unmarshal([]byte(valuesJSON), &rec.Values); err != nil {
				return nil, fmt.Errorf("unmarshal values: %w", err)
			}
		}
		if decisionJSON != "" && decisionJSON != "null" {
			if err := json.Unmarshal([]byte(decisionJSON), &rec.Decision); err != nil {
				return nil, fmt.Errorf("unmarshal decision: %w", err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, statusFilter RunStatus, limit int) ([]Workflow, error) {
	query := `SELECT run_id, graph_name, workflow_id, status, created_at, updated_at FROM runs`
	var args []any
	if statusFilter != "" {
		query += " WHERE status = ?"
		args = append(args, string(statusFilter))
	}
	query += " ORDER BY run_id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Workflow
	for rows.Next() {
		var w Workflow
		var status string
		if err := rows.Scan(&w.RunID, &w.GraphName, &w.WorkflowID, &status, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		w.Status = RunStatus(status)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
