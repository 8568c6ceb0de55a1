// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package secretstore

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/forgeplan/forgeplan/lib/sealed"
	"github.com/forgeplan/forgeplan/lib/secret"
)

// BundleVersion is the format version written into sealed bundles.
const BundleVersion = 1

// bundlePayload is the JSON carried inside a sealed bundle's age
// ciphertext.
type bundlePayload struct {
	Version int               `json:"version"`
	Secrets map[string]string `json:"secrets"`
}

// SealBundle collects every secret from the source store into a bundle
// and encrypts it to the given age recipients. Returns the base64
// ciphertext ready to write to a bundle file. The plaintext bundle
// exists only transiently; its serialized form is zeroed before
// returning.
func SealBundle(source Store, recipients []string) (string, error) {
	payload := bundlePayload{
		Version: BundleVersion,
		Secrets: make(map[string]string),
	}
	for _, name := range source.Names() {
		buffer, err := source.Open(name)
		if err != nil {
			return "", fmt.Errorf("reading secret %q: %w", name, err)
		}
		payload.Secrets[name] = buffer.String()
		buffer.Close()
	}
	if len(payload.Secrets) == 0 {
		return "", fmt.Errorf("no secrets to seal")
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding bundle: %w", err)
	}
	ciphertext, err := sealed.Encrypt(plaintext, recipients)
	secret.Zero(plaintext)
	if err != nil {
		return "", fmt.Errorf("sealing bundle: %w", err)
	}
	return ciphertext, nil
}

// SealedStore resolves secrets from an age-encrypted bundle file
// produced by SealBundle (the "forgeplan secret seal" command). The
// bundle is decrypted once at open time into a locked buffer; values
// are extracted on demand and never cached outside it.
type SealedStore struct {
	path      string
	plaintext *secret.Buffer
	names     []string
}

// NewSealedStore decrypts the bundle at path with the given age
// identity. The identity is borrowed, not closed. The caller must
// Close the store to release the decrypted bundle.
func NewSealedStore(path string, identity *secret.Buffer) (*SealedStore, error) {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sealed bundle: %w", err)
	}

	plaintext, err := sealed.Decrypt(strings.TrimSpace(string(ciphertext)), identity)
	if err != nil {
		return nil, fmt.Errorf("unsealing %s: %w", path, err)
	}

	payload, err := decodeBundle(plaintext.Bytes())
	if err != nil {
		plaintext.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &SealedStore{
		path:      path,
		plaintext: plaintext,
		names:     slices.Sorted(maps.Keys(payload.Secrets)),
	}, nil
}

func decodeBundle(data []byte) (*bundlePayload, error) {
	var payload bundlePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	if payload.Version != BundleVersion {
		return nil, fmt.Errorf("unsupported bundle version %d", payload.Version)
	}
	for name, value := range payload.Secrets {
		if !secretNamePattern.MatchString(name) {
			return nil, fmt.Errorf("invalid secret name %q in bundle", name)
		}
		if value == "" {
			return nil, fmt.Errorf("secret %q in bundle is empty", name)
		}
	}
	return &payload, nil
}

// Names returns the sorted secret names in the bundle.
func (s *SealedStore) Names() []string {
	return slices.Clone(s.names)
}

// Resolve returns the fingerprint of the named bundle secret.
func (s *SealedStore) Resolve(name string) (string, bool) {
	buffer, err := s.Open(name)
	if err != nil {
		return "", false
	}
	defer buffer.Close()
	return fingerprintBuffer(buffer), true
}

// Open extracts the named secret from the decrypted bundle into its
// own locked buffer. The extraction parses the bundle JSON, which
// makes a brief heap copy of the values; the locked buffer remains the
// durable one.
func (s *SealedStore) Open(name string) (*secret.Buffer, error) {
	if !slices.Contains(s.names, name) {
		return nil, fmt.Errorf("secret %q not present in %s", name, s.path)
	}
	payload, err := decodeBundle(s.plaintext.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return secret.NewFromBytes([]byte(payload.Secrets[name]))
}

// Close releases the decrypted bundle memory. The store cannot resolve
// secrets afterwards.
func (s *SealedStore) Close() error {
	return s.plaintext.Close()
}
