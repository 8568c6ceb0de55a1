// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgeplan/forgeplan/lib/runlog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeRunConfig writes a config file selecting a file-backed run
// store at the given path, and returns the config path. The workflows
// dir is pinned under the same temp tree so EnsurePaths never touches
// the real home directory.
func writeRunConfig(t *testing.T, storePath string) string {
	t.Helper()
	dir := t.TempDir()
	content := "store:\n  backend: file\n  path: " + storePath + "\n" +
		"workflows:\n  dir: " + filepath.Join(dir, "workflows") + "\n"
	path := filepath.Join(dir, "forgeplan.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// seedStore writes records through a file store the way the webhook
// service would, then closes it so the commands reopen the snapshot.
func seedStore(t *testing.T, storePath string, records []*runlog.Record) {
	t.Helper()
	store, err := runlog.OpenFileStore(runlog.FileStoreConfig{Path: storePath})
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	for _, record := range records {
		if err := store.Append(context.Background(), record); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func testRecord(workflow, job, conclusion string, seconds float64, completed time.Time) *runlog.Record {
	return &runlog.Record{
		Repo:        "nicolargo/glances",
		Workflow:    workflow,
		Job:         job,
		Event:       "push",
		Conclusion:  conclusion,
		HeadBranch:  "develop",
		StartedAt:   completed.Add(-time.Minute),
		CompletedAt: completed,
		Seconds:     seconds,
	}
}

// captureStdout captures stdout output during fn execution. Tests that
// use it must not run in parallel.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	original := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = writer

	fn()

	writer.Close()
	os.Stdout = original
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading captured stdout: %v", err)
	}
	return string(data)
}
