// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package runlog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/forgeplan/forgeplan/lib/sqlitepool"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY,
	repo TEXT NOT NULL DEFAULT '',
	workflow TEXT NOT NULL,
	job TEXT NOT NULL DEFAULT '',
	run_id INTEGER NOT NULL DEFAULT 0,
	attempt INTEGER NOT NULL DEFAULT 0,
	event TEXT NOT NULL DEFAULT '',
	conclusion TEXT NOT NULL,
	head_branch TEXT NOT NULL DEFAULT '',
	head_sha TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL DEFAULT 0,
	completed_at INTEGER NOT NULL,
	seconds REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS runs_by_key ON runs (workflow, job);
CREATE INDEX IF NOT EXISTS runs_by_completed ON runs (completed_at);
`

// SQLiteStore persists run records in an embedded SQLite database.
// The zero-setup default for a single host: the webhook service
// appends while CLI queries read concurrently through WAL.
type SQLiteStore struct {
	pool *sqlitepool.Pool
}

// OpenSQLiteStore opens (creating if needed) the database at path and
// ensures the schema exists.
func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, sqliteSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("runlog: %w", err)
	}
	return &SQLiteStore{pool: pool}, nil
}

// Append inserts one record.
func (s *SQLiteStore) Append(ctx context.Context, record *Record) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("runlog: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO runs (repo, workflow, job, run_id, attempt, event, conclusion,
			head_branch, head_sha, started_at, completed_at, seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				record.Repo, record.Workflow, record.Job, record.RunID,
				record.Attempt, record.Event, record.Conclusion,
				record.HeadBranch, record.HeadSHA,
				record.StartedAt.Unix(), record.CompletedAt.Unix(),
				record.Seconds,
			},
		})
	if err != nil {
		return fmt.Errorf("runlog: inserting record: %w", err)
	}
	return nil
}

// List returns records matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("runlog: %w", err)
	}
	defer s.pool.Put(conn)

	query := strings.Builder{}
	query.WriteString(`SELECT repo, workflow, job, run_id, attempt, event, conclusion,
		head_branch, head_sha, started_at, completed_at, seconds FROM runs`)
	var clauses []string
	var args []any
	if filter.Workflow != "" {
		clauses = append(clauses, "workflow = ?")
		args = append(args, filter.Workflow)
	}
	if filter.Job != "" {
		clauses = append(clauses, "job = ?")
		args = append(args, filter.Job)
	}
	if filter.Conclusion != "" {
		clauses = append(clauses, "conclusion = ?")
		args = append(args, filter.Conclusion)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "completed_at >= ?")
		args = append(args, filter.Since.Unix())
	}
	if len(clauses) > 0 {
		query.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	query.WriteString(" ORDER BY completed_at DESC, id DESC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	var records []*Record
	err = sqlitex.Execute(conn, query.String(), &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			records = append(records, &Record{
				Repo:        stmt.ColumnText(0),
				Workflow:    stmt.ColumnText(1),
				Job:         stmt.ColumnText(2),
				RunID:       stmt.ColumnInt64(3),
				Attempt:     stmt.ColumnInt(4),
				Event:       stmt.ColumnText(5),
				Conclusion:  stmt.ColumnText(6),
				HeadBranch:  stmt.ColumnText(7),
				HeadSHA:     stmt.ColumnText(8),
				StartedAt:   time.Unix(stmt.ColumnInt64(9), 0).UTC(),
				CompletedAt: time.Unix(stmt.ColumnInt64(10), 0).UTC(),
				Seconds:     stmt.ColumnFloat(11),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("runlog: listing records: %w", err)
	}
	return records, nil
}

// JobStats aggregates per workflow/job key, sorted by key.
func (s *SQLiteStore) JobStats(ctx context.Context) ([]JobStat, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("runlog: %w", err)
	}
	defer s.pool.Put(conn)

	var stats []JobStat
	err = sqlitex.Execute(conn, `
		SELECT workflow, job, COUNT(*),
			SUM(CASE WHEN conclusion IN ('failure', 'timed_out') THEN 1 ELSE 0 END),
			COALESCE(MIN(CASE WHEN seconds > 0 THEN seconds END), 0),
			COALESCE(MAX(CASE WHEN seconds > 0 THEN seconds END), 0),
			COALESCE(AVG(CASE WHEN seconds > 0 THEN seconds END), 0)
		FROM runs
		GROUP BY workflow, job
		ORDER BY workflow, job`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				key := stmt.ColumnText(0)
				if job := stmt.ColumnText(1); job != "" {
					key += "/" + job
				}
				stats = append(stats, JobStat{
					Key:         key,
					Count:       stmt.ColumnInt(2),
					Failures:    stmt.ColumnInt(3),
					MinSeconds:  stmt.ColumnFloat(4),
					MaxSeconds:  stmt.ColumnFloat(5),
					MeanSeconds: stmt.ColumnFloat(6),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("runlog: aggregating records: %w", err)
	}
	return stats, nil
}

// Close closes the underlying pool.
func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}
