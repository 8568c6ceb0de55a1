// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package runlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forgeplan/forgeplan/lib/codec"
)

// snapshotVersion is the format version written into snapshots and
// archives.
const snapshotVersion = 1

// snapshotPayload is the CBOR document a FileStore writes.
type snapshotPayload struct {
	Version int       `cbor:"version"`
	Records []*Record `cbor:"records"`
}

// FileStoreConfig configures OpenFileStore. Path is required.
type FileStoreConfig struct {
	// Path is the snapshot file, conventionally ending in .cbor. The
	// parent directory must exist.
	Path string

	// MaxRecords bounds the live snapshot. When an append pushes the
	// count past it, the older half rotates into a compressed archive
	// next to the snapshot. Default 4096.
	MaxRecords int

	// Compression picks the archive codec, CompressionZstd (default)
	// or CompressionLZ4.
	Compression string

	// Logger receives rotation notices. Nil means discard.
	Logger *slog.Logger
}

// FileStore persists run records in a single CBOR snapshot rewritten
// atomically on every append (write to a temp file, then rename).
// Suited to a single process; the SQLite and Postgres stores cover
// anything bigger.
type FileStore struct {
	mu          sync.Mutex
	path        string
	maxRecords  int
	compression string
	logger      *slog.Logger
	records     []*Record // chronological
}

// OpenFileStore opens or creates a snapshot file.
func OpenFileStore(cfg FileStoreConfig) (*FileStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("runlog: file store path is required")
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 4096
	}
	if cfg.Compression == "" {
		cfg.Compression = CompressionZstd
	}
	if _, err := archiveSuffix(cfg.Compression); err != nil {
		return nil, fmt.Errorf("runlog: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store := &FileStore{
		path:        cfg.Path,
		maxRecords:  cfg.MaxRecords,
		compression: cfg.Compression,
		logger:      logger,
	}

	data, err := os.ReadFile(cfg.Path)
	switch {
	case os.IsNotExist(err):
		// Fresh store.
	case err != nil:
		return nil, fmt.Errorf("runlog: reading snapshot: %w", err)
	default:
		var payload snapshotPayload
		if err := codec.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("runlog: decoding snapshot %s: %w", cfg.Path, err)
		}
		if payload.Version != snapshotVersion {
			return nil, fmt.Errorf("runlog: snapshot %s has unsupported version %d", cfg.Path, payload.Version)
		}
		store.records = payload.Records
	}
	return store, nil
}

// Append adds a record and rewrites the snapshot, rotating older
// records into an archive when the live set exceeds the bound.
func (s *FileStore) Append(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	if len(s.records) > s.maxRecords {
		if err := s.rotateLocked(); err != nil {
			// Keep the record in memory; the next append retries.
			return fmt.Errorf("runlog: rotating archive: %w", err)
		}
	}
	return s.writeSnapshotLocked()
}

// rotateLocked archives the older half of the live records.
func (s *FileStore) rotateLocked() error {
	half := len(s.records) / 2
	archived := s.records[:half]

	payload := snapshotPayload{Version: snapshotVersion, Records: archived}
	plain, err := codec.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding archive: %w", err)
	}
	compressed, err := compressArchive(plain, s.compression)
	if err != nil {
		return err
	}

	suffix, err := archiveSuffix(s.compression)
	if err != nil {
		return err
	}
	stamp := time.Now().UTC().Format("20060102T150405.000000000Z")
	archivePath := fmt.Sprintf("%s.%s.cbor.%s",
		strings.TrimSuffix(s.path, ".cbor"), stamp, suffix)

	if err := writeFileAtomic(archivePath, compressed); err != nil {
		return err
	}

	s.records = append([]*Record(nil), s.records[half:]...)
	s.logger.Info("run archive rotated",
		"archive", archivePath,
		"archived", len(archived),
		"live", len(s.records),
	)
	return nil
}

func (s *FileStore) writeSnapshotLocked() error {
	payload := snapshotPayload{Version: snapshotVersion, Records: s.records}
	data, err := codec.Marshal(payload)
	if err != nil {
		return fmt.Errorf("runlog: encoding snapshot: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("runlog: writing snapshot: %w", err)
	}
	return nil
}

// writeFileAtomic writes via a temp file in the same directory plus a
// rename, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// List returns live records matching the filter, newest first.
func (s *FileStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*Record
	for i := len(s.records) - 1; i >= 0; i-- {
		record := s.records[i]
		if !matchesFilter(record, filter) {
			continue
		}
		matches = append(matches, record)
		if filter.Limit > 0 && len(matches) == filter.Limit {
			break
		}
	}
	return matches, nil
}

func matchesFilter(record *Record, filter Filter) bool {
	if filter.Workflow != "" && record.Workflow != filter.Workflow {
		return false
	}
	if filter.Job != "" && record.Job != filter.Job {
		return false
	}
	if filter.Conclusion != "" && record.Conclusion != filter.Conclusion {
		return false
	}
	if !filter.Since.IsZero() && record.CompletedAt.Before(filter.Since) {
		return false
	}
	return true
}

// JobStats aggregates the live records per key, sorted by key.
func (s *FileStore) JobStats(ctx context.Context) ([]JobStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := make(map[string]*JobStat)
	counted := make(map[string]int)
	for _, record := range s.records {
		key := record.Key()
		stat := byKey[key]
		if stat == nil {
			stat = &JobStat{Key: key}
			byKey[key] = stat
		}
		stat.Count++
		if record.Failed() {
			stat.Failures++
		}
		if record.Seconds > 0 {
			if counted[key] == 0 || record.Seconds < stat.MinSeconds {
				stat.MinSeconds = record.Seconds
			}
			if record.Seconds > stat.MaxSeconds {
				stat.MaxSeconds = record.Seconds
			}
			// MeanSeconds accumulates the sum; divided below.
			stat.MeanSeconds += record.Seconds
			counted[key]++
		}
	}

	stats := make([]JobStat, 0, len(byKey))
	for key, stat := range byKey {
		if n := counted[key]; n > 0 {
			stat.MeanSeconds /= float64(n)
		}
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Key < stats[j].Key })
	return stats, nil
}

// Close flushes nothing; every append already rewrote the snapshot.
func (s *FileStore) Close() error {
	return nil
}

// ReadArchive loads a rotated archive file written by a FileStore.
func ReadArchive(path string) ([]*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runlog: reading archive: %w", err)
	}
	suffix := strings.TrimPrefix(filepath.Ext(path), ".")
	plain, err := decompressArchive(data, suffix)
	if err != nil {
		return nil, fmt.Errorf("runlog: archive %s: %w", path, err)
	}
	var payload snapshotPayload
	if err := codec.Unmarshal(plain, &payload); err != nil {
		return nil, fmt.Errorf("runlog: decoding archive %s: %w", path, err)
	}
	if payload.Version != snapshotVersion {
		return nil, fmt.Errorf("runlog: archive %s has unsupported version %d", path, payload.Version)
	}
	return payload.Records, nil
}
