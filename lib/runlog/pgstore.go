// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package runlog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id BIGSERIAL PRIMARY KEY,
	repo TEXT NOT NULL DEFAULT '',
	workflow TEXT NOT NULL,
	job TEXT NOT NULL DEFAULT '',
	run_id BIGINT NOT NULL DEFAULT 0,
	attempt INTEGER NOT NULL DEFAULT 0,
	event TEXT NOT NULL DEFAULT '',
	conclusion TEXT NOT NULL,
	head_branch TEXT NOT NULL DEFAULT '',
	head_sha TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ NOT NULL,
	seconds DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS runs_by_key ON runs (workflow, job);
CREATE INDEX IF NOT EXISTS runs_by_completed ON runs (completed_at);
`

// PostgresStore persists run records in PostgreSQL, for deployments
// where several webhook receivers share one run history.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgresStore connects to the database at url (a postgres://
// connection string) and ensures the schema exists.
func OpenPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("runlog: connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("runlog: creating schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Append inserts one record.
func (s *PostgresStore) Append(ctx context.Context, record *Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (repo, workflow, job, run_id, attempt, event, conclusion,
			head_branch, head_sha, started_at, completed_at, seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		record.Repo, record.Workflow, record.Job, record.RunID,
		record.Attempt, record.Event, record.Conclusion,
		record.HeadBranch, record.HeadSHA,
		record.StartedAt, record.CompletedAt, record.Seconds)
	if err != nil {
		return fmt.Errorf("runlog: inserting record: %w", err)
	}
	return nil
}

// List returns records matching the filter, newest first.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT repo, workflow, job, run_id, attempt, event, conclusion,
		head_branch, head_sha, started_at, completed_at, seconds FROM runs`)
	var clauses []string
	var args []any
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Workflow != "" {
		clauses = append(clauses, "workflow = "+arg(filter.Workflow))
	}
	if filter.Job != "" {
		clauses = append(clauses, "job = "+arg(filter.Job))
	}
	if filter.Conclusion != "" {
		clauses = append(clauses, "conclusion = "+arg(filter.Conclusion))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "completed_at >= "+arg(filter.Since))
	}
	if len(clauses) > 0 {
		query.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	query.WriteString(" ORDER BY completed_at DESC, id DESC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT " + arg(filter.Limit))
	}

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("runlog: listing records: %w", err)
	}
	defer rows.Close()
	var records []*Record
	for rows.Next() {
		record := &Record{}
		err = rows.Scan(&record.Repo, &record.Workflow, &record.Job,
			&record.RunID, &record.Attempt, &record.Event, &record.Conclusion,
			&record.HeadBranch, &record.HeadSHA,
			&record.StartedAt, &record.CompletedAt, &record.Seconds)
		if err != nil {
			return nil, fmt.Errorf("runlog: scanning record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runlog: listing records: %w", err)
	}
	return records, nil
}

// JobStats aggregates per workflow/job key, sorted by key.
func (s *PostgresStore) JobStats(ctx context.Context) ([]JobStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT workflow, job, COUNT(*),
			COUNT(*) FILTER (WHERE conclusion IN ('failure', 'timed_out')),
			COALESCE(MIN(seconds) FILTER (WHERE seconds > 0), 0),
			COALESCE(MAX(seconds) FILTER (WHERE seconds > 0), 0),
			COALESCE(AVG(seconds) FILTER (WHERE seconds > 0), 0)
		FROM runs
		GROUP BY workflow, job
		ORDER BY workflow, job`)
	if err != nil {
		return nil, fmt.Errorf("runlog: aggregating records: %w", err)
	}
	defer rows.Close()
	var stats []JobStat
	for rows.Next() {
		var workflow, job string
		var stat JobStat
		err = rows.Scan(&workflow, &job, &stat.Count, &stat.Failures,
			&stat.MinSeconds, &stat.MaxSeconds, &stat.MeanSeconds)
		if err != nil {
			return nil, fmt.Errorf("runlog: scanning aggregate: %w", err)
		}
		stat.Key = workflow
		if job != "" {
			stat.Key += "/" + job
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runlog: aggregating records: %w", err)
	}
	return stats, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
