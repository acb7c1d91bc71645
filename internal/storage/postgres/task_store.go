// Package postgres keeps the batch task ledger in Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable holds one row per processed batch:
//
//	CREATE TABLE mining_tasks (
//		batch_id    text PRIMARY KEY,
//		task_id     bigint NOT NULL,
//		source      text NOT NULL,
//		requested   integer NOT NULL,
//		delivered   integer NOT NULL,
//		failed      integer NOT NULL,
//		errors      jsonb NOT NULL,
//		started_at  timestamptz NOT NULL,
//		finished_at timestamptz NOT NULL
//	);
const DefaultTable = "mining_tasks"

// TaskStoreConfig controls the Postgres connection pool used for ledger rows.
type TaskStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// TaskStore writes batch summaries into Postgres.
type TaskStore struct {
	pool  execCloser
	table string
}

var _ crunchbase.TaskLedger = (*TaskStore)(nil)

// NewTaskStore connects a TaskStore using cfg.
func NewTaskStore(ctx context.Context, cfg TaskStoreConfig) (*TaskStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewTaskStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewTaskStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewTaskStoreWithPool(pool execCloser, table string) (*TaskStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &TaskStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *TaskStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordTask upserts the summary row of one batch.
func (s *TaskStore) RecordTask(ctx context.Context, rec crunchbase.TaskRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("task store is not configured")
	}
	if rec.BatchID == "" {
		return fmt.Errorf("batch id is required")
	}
	errs := rec.Errors
	if errs == nil {
		errs = map[string]crunchbase.ErrorInfo{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	batch_id,
	task_id,
	source,
	requested,
	delivered,
	failed,
	errors,
	started_at,
	finished_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (batch_id) DO UPDATE SET
	delivered = EXCLUDED.delivered,
	failed = EXCLUDED.failed,
	errors = EXCLUDED.errors,
	finished_at = EXCLUDED.finished_at`, s.table)

	args := []any{
		rec.BatchID,
		rec.TaskID,
		crunchbase.SourceName,
		rec.Requested,
		rec.Delivered,
		len(errs),
		errorsJSON,
		rec.StartedAt,
		rec.FinishedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}
