// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package runlog records completed workflow runs and derives health
// signals from them: per-job duration series, failure streaks, and
// threshold alerts. Forgeplan never executes jobs; everything here is
// built from run and job events reported by the forge.
//
// A [Record] is one completed run or job. A [Store] persists records
// ([FileStore], [SQLiteStore], [PostgresStore]). A [Log] holds the
// in-memory view the webhook service serves: recent records, duration
// [Series] per key, and the [Monitor]'s alerts.
package runlog

import (
	"context"
	"time"
)

// Filter narrows List queries. Zero values mean "any".
type Filter struct {
	// Workflow matches the workflow name or file path.
	Workflow string
	// Job matches the job name; whole-run records have an empty job.
	Job string
	// Conclusion matches the run conclusion ("failure", "success", ...).
	Conclusion string
	// Since excludes records completed before it.
	Since time.Time
	// Limit caps the number of returned records, newest first.
	// Zero means no cap.
	Limit int
}

// JobStat is an aggregate over one workflow/job key.
type JobStat struct {
	Key         string  `json:"key"`
	Count       int     `json:"count"`
	Failures    int     `json:"failures"`
	MinSeconds  float64 `json:"min_seconds"`
	MaxSeconds  float64 `json:"max_seconds"`
	MeanSeconds float64 `json:"mean_seconds"`
}

// Store persists run records. Implementations must be safe for
// concurrent use. List returns records newest first.
type Store interface {
	Append(ctx context.Context, record *Record) error
	List(ctx context.Context, filter Filter) ([]*Record, error)
	JobStats(ctx context.Context) ([]JobStat, error)
	Close() error
}
