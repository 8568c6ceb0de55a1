// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package secretstore

import (
	"fmt"
	"slices"

	"github.com/forgeplan/forgeplan/lib/secret"
)

// MultiStore overlays several stores. The first store that holds a
// name wins, so precedence follows the Merge argument order; a typical
// layering is environment overrides first, then the sealed directory.
type MultiStore struct {
	stores []Store
}

// Merge combines stores with first-match-wins precedence.
func Merge(stores ...Store) *MultiStore {
	return &MultiStore{stores: stores}
}

// Names returns the sorted union of all store names.
func (m *MultiStore) Names() []string {
	var names []string
	for _, store := range m.stores {
		for _, name := range store.Names() {
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names
}

// Resolve asks each store in order and returns the first hit.
func (m *MultiStore) Resolve(name string) (string, bool) {
	for _, store := range m.stores {
		if fingerprint, ok := store.Resolve(name); ok {
			return fingerprint, true
		}
	}
	return "", false
}

// Open opens the secret from the first store that lists it.
func (m *MultiStore) Open(name string) (*secret.Buffer, error) {
	for _, store := range m.stores {
		if slices.Contains(store.Names(), name) {
			return store.Open(name)
		}
	}
	return nil, fmt.Errorf("secret %q not present in any store", name)
}
