// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package secretstore

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/forgeplan/forgeplan/lib/secret"
)

// EnvPrefix marks environment variables that carry secrets. The secret
// name is the part after the prefix: FORGEPLAN_SECRET_DOCKER_TOKEN
// holds the secret named DOCKER_TOKEN.
const EnvPrefix = "FORGEPLAN_SECRET_"

var secretNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// EnvStore resolves secrets from prefixed environment variables.
// Environment memory cannot be locked or scrubbed, so this store fits
// CI containers and development, not long-lived hosts; prefer DirStore
// or SealedStore there.
type EnvStore struct {
	values map[string]string
	names  []string
}

// NewEnvStore builds a store from an environment in os.Environ form.
// Entries without the prefix, or whose remainder is not a valid secret
// name, are ignored.
func NewEnvStore(environ []string) *EnvStore {
	store := &EnvStore{values: make(map[string]string)}
	for _, entry := range environ {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			continue
		}
		name, hasPrefix := strings.CutPrefix(key, EnvPrefix)
		if !hasPrefix || !secretNamePattern.MatchString(name) || value == "" {
			continue
		}
		store.values[name] = value
	}
	store.names = slices.Sorted(maps.Keys(store.values))
	return store
}

// FromEnvironment builds a store from the process environment.
func FromEnvironment() *EnvStore {
	return NewEnvStore(os.Environ())
}

// Names returns the sorted secret names found in the environment.
func (s *EnvStore) Names() []string {
	return slices.Clone(s.names)
}

// Resolve returns the short fingerprint of the named secret.
func (s *EnvStore) Resolve(name string) (string, bool) {
	value, ok := s.values[name]
	if !ok {
		return "", false
	}
	return ComputeFingerprint([]byte(value)).Short(), true
}

// Open copies the value into a locked buffer. The environment itself
// still holds an unprotected copy for the life of the process.
func (s *EnvStore) Open(name string) (*secret.Buffer, error) {
	value, ok := s.values[name]
	if !ok {
		return nil, fmt.Errorf("secret %q not present in environment", name)
	}
	return secret.NewFromBytes([]byte(value))
}
