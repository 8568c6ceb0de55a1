// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package secretstore

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/forgeplan/forgeplan/lib/secret"
)

// DirStore resolves secrets from a directory of plain files, one
// secret per file, named after the secret. File contents are trimmed
// of surrounding whitespace, matching how most tools write token
// files. Files whose names are not valid secret names are ignored, as
// are subdirectories.
type DirStore struct {
	dir   string
	names []string
}

// NewDirStore scans the directory and returns a store over it. The
// scan fixes the name set; values are read from disk on every Resolve
// and Open, so rotated contents are picked up without a rescan.
func NewDirStore(dir string) (*DirStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning secret directory: %w", err)
	}

	store := &DirStore{dir: dir}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !secretNamePattern.MatchString(entry.Name()) {
			continue
		}
		store.names = append(store.names, entry.Name())
	}
	slices.Sort(store.names)
	return store, nil
}

// Names returns the sorted secret names found during the scan.
func (s *DirStore) Names() []string {
	return slices.Clone(s.names)
}

// Resolve reads the named file and returns its fingerprint. Read
// failures (including a file deleted since the scan) report ok=false.
func (s *DirStore) Resolve(name string) (string, bool) {
	buffer, err := s.Open(name)
	if err != nil {
		return "", false
	}
	defer buffer.Close()
	return fingerprintBuffer(buffer), true
}

// Open reads the named file into a locked buffer.
func (s *DirStore) Open(name string) (*secret.Buffer, error) {
	if !slices.Contains(s.names, name) {
		return nil, fmt.Errorf("secret %q not present in %s", name, s.dir)
	}
	buffer, err := secret.ReadFromPath(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("reading secret %q: %w", name, err)
	}
	return buffer, nil
}
