package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed Checkpointer, for deployments
// where several workers share one run's step log or a run must survive
// past a single process's lifetime. Schema mirrors SQLiteStore's: a
// runs table for Workflow records, a steps table for StepRecord rows
// keyed by (run_id, superstep, node_name).
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a connection pool against dsn (see
// github.com/go-sql-driver/mysql for DSN format) and ensures the
// checkpoint schema exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id      VARCHAR(255) PRIMARY KEY,
			graph_name  VARCHAR(255) NOT NULL,
			workflow_id VARCHAR(255) NOT NULL DEFAULT '',
			status      VARCHAR(32) NOT NULL,
			created_at  DATETIME(6) NOT NULL,
			updated_at  DATETIME(6) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id            VARCHAR(255) NOT NULL,
			superstep         INT UNSIGNED NOT NULL,
			global_index      BIGINT AUTO_INCREMENT,
			node_name         VARCHAR(255) NOT NULL,
			node_kind         VARCHAR(32) NOT NULL,
			status            VARCHAR(32) NOT NULL,
			consumed_versions JSON NOT NULL,
			values_json       JSON NULL,
			duration_ms       DOUBLE NOT NULL,
			cached            TINYINT NOT NULL,
			decision_json     JSON NULL,
			error             TEXT NOT NULL,
			created_at        DATETIME(6) NOT NULL,
			nested_run_id     VARCHAR(255) NOT NULL DEFAULT '',
			PRIMARY KEY (global_index),
			UNIQUE KEY unique_run_superstep_node (run_id, superstep, node_name),
			INDEX idx_steps_run_index (run_id, global_index)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create checkpoint schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }

func (s *MySQLStore) CreateRun(ctx context.Context, runID, graphName string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, graph_name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE graph_name = VALUES(graph_name), updated_at = VALUES(updated_at)
	`, runID, graphName, string(StatusRunning), now, now)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *MySQLStore) UpdateRunStatus(ctx context.Context, runID string, status RunStatus) error {
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

func (s *MySQLStore) SaveStep(ctx context.Context, rec StepRecord) error {
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
			run_id, superstep, node_name, node_kind, status,
			consumed_versions, values_json, duration_ms, cached, decision_json,
			error, created_at, nested_run_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			node_kind         = VALUES(node_kind),
			status            = VALUES(status),
			consumed_versions = VALUES(consumed_versions),
			values_json       = VALUES(values_json),
			duration_ms       = VALUES(duration_ms),
			cached            = VALUES(cached),
			decision_json     = VALUES(decision_json),
			error             = VALUES(error),
			nested_run_id     = VALUES(nested_run_id)
	`, rec.RunID, rec.Superstep, rec.NodeName, string(rec.NodeKind), string(rec.Status),
		string(consumedJSON), string(valuesJSON), rec.DurationMS, boolToInt(rec.Cached), string(decisionJSON),
		rec.Error, createdAt, rec.NestedRunID)
	if err != nil {
		return fmt.Errorf("save step: %w", err)
	}
	return nil
}

func (s *MySQLStore) GetState(ctx context.Context, runID string, throughSuperstep *uint32) (map[string]any, error) {
	steps, err := s.GetSteps(ctx, runID, throughSuperstep)
	if err != nil {
		return nil, err
	}
	return FoldState(steps), nil
}

func (s *MySQLStore) GetSteps(ctx context.Context, runID string, throughSuperstep *uint32) ([]StepRecord, error) {
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
			rec                      StepRecord
			idx                      uint64
			consumedJSON, valuesJSON string
			decisionJSON             string
			cached                   int
		)
		if err := rows.Scan(&rec.RunID, &rec.Superstep, &idx, &rec.NodeName, &rec.NodeKind, &rec.Status,
			&consumedJSON, &valuesJSON, &rec.DurationMS, &cached, &decisionJSON,
			&rec.Error, &rec.CreatedAt, &rec.NestedRunID); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		rec.Index = idx
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

func (s *MySQLStore) ListRuns(ctx context.Context, statusFilter RunStatus, limit int) ([]Workflow, error) {
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
	return out, nil
}
