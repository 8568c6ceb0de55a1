// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package runlog

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// jobTally accumulates per-key counts alongside the duration series.
type jobTally struct {
	count    int
	failures int
	seconds  *Series
}

// Log is the live view a service keeps over its run history: recent
// records, per-key stats, and the monitor's alerts. Appends optionally
// flow through to a persistent Store; Replay rebuilds the view from
// one after a restart.
//
// Log is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	store   Store
	monitor *Monitor
	tallies map[string]*jobTally
	recent  []*Record
	logger  *slog.Logger
}

// NewLog creates a log. store may be nil for a purely in-memory view;
// logger may be nil to discard alert notices.
func NewLog(store Store, thresholds Thresholds, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Log{
		store:   store,
		monitor: NewMonitor(thresholds),
		tallies: make(map[string]*jobTally),
		logger:  logger,
	}
}

// Append validates and records one run record: persists it when a
// store is configured, updates stats, and feeds the monitor. Raised
// alerts are logged.
func (l *Log) Append(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid run record: %w", err)
	}
	if l.store != nil {
		if err := l.store.Append(ctx, record); err != nil {
			return fmt.Errorf("persisting run record: %w", err)
		}
	}

	l.mu.Lock()
	raised := l.observe(record)
	l.mu.Unlock()

	for _, alert := range raised {
		l.logger.Warn("run alert",
			"kind", alert.Kind,
			"key", alert.Key,
			"state", alert.State,
			"message", alert.Message,
		)
	}
	return nil
}

// observe updates in-memory state. Caller holds l.mu.
func (l *Log) observe(record *Record) []*Alert {
	key := record.Key()
	tally := l.tallies[key]
	if tally == nil {
		tally = &jobTally{seconds: NewSeries(key, UnitSeconds)}
		l.tallies[key] = tally
	}
	tally.count++
	if record.Failed() {
		tally.failures++
	}
	if record.Seconds > 0 {
		tally.seconds.Add(record.CompletedAt, record.Seconds)
	}

	l.recent = append(l.recent, record)
	if len(l.recent) > DefaultCapacity {
		l.recent = l.recent[len(l.recent)-DefaultCapacity:]
	}

	return l.monitor.Observe(record)
}

// Replay rebuilds the in-memory view from the configured store.
// Existing in-memory state is discarded.
func (l *Log) Replay(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	records, err := l.store.List(ctx, Filter{})
	if err != nil {
		return fmt.Errorf("replaying run store: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.monitor = NewMonitor(l.monitor.thresholds)
	l.tallies = make(map[string]*jobTally)
	l.recent = nil
	// List returns newest first; replay chronologically.
	for _, record := range slices.Backward(records) {
		l.observe(record)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (l *Log) Recent(n int) []*Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := min(n, len(l.recent))
	records := make([]*Record, 0, count)
	for i := len(l.recent) - 1; i >= 0 && len(records) < count; i-- {
		records = append(records, l.recent[i])
	}
	return records
}

// Alerts returns the monitor's alerts, ongoing first.
func (l *Log) Alerts() []*Alert {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.monitor.Alerts()
}

// Stats returns per-key aggregates sorted by key.
func (l *Log) Stats() []JobStat {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := make([]JobStat, 0, len(l.tallies))
	for _, key := range slices.Sorted(maps.Keys(l.tallies)) {
		tally := l.tallies[key]
		stats = append(stats, JobStat{
			Key:         key,
			Count:       tally.count,
			Failures:    tally.failures,
			MinSeconds:  tally.seconds.Min(),
			MaxSeconds:  tally.seconds.Max(),
			MeanSeconds: tally.seconds.Mean(),
		})
	}
	return stats
}
