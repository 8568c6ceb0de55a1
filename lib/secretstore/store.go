// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package secretstore resolves workflow secret names against local
// secret sources. A store answers two questions: which secrets exist,
// and what is the fingerprint of each value. The planner consumes
// only fingerprints (a Store satisfies plan.SecretResolver), so secret
// material never enters a plan; commands that genuinely need the value
// use Open, which returns it in a locked secret.Buffer.
//
// Three sources are supported:
//
//   - [EnvStore]: FORGEPLAN_SECRET_<NAME> environment variables
//   - [DirStore]: a directory of plain files, one secret per file
//   - [SealedStore]: an age-encrypted bundle built by [SealBundle]
//
// [Merge] overlays stores with first-match-wins precedence.
package secretstore

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/forgeplan/forgeplan/lib/secret"
)

// Store is a read-only collection of named secrets. Implementations
// must be safe for concurrent use.
type Store interface {
	// Names returns the sorted names of every secret the store can
	// resolve.
	Names() []string

	// Resolve returns the short fingerprint of the named secret's
	// current value, or ok=false if the store does not hold it or the
	// value cannot be read. The signature matches plan.SecretResolver.
	Resolve(name string) (fingerprint string, ok bool)

	// Open returns the secret value in a locked buffer the caller
	// must close.
	Open(name string) (*secret.Buffer, error)
}

// Fingerprint is a keyed blake3 hash of a secret value. The key only
// separates this hash domain from the others in the codebase; a
// fingerprint of a low-entropy value is still guessable, so treat
// fingerprints as identifiers, not as commitments.
type Fingerprint [32]byte

// secretValueKey is the 32-byte blake3 key for the secret value hash
// domain, distinct from the workflow definition domain.
var secretValueKey = func() []byte {
	key := make([]byte, 32)
	copy(key, "forgeplan.secret")
	return key
}()

// ComputeFingerprint hashes a secret value into the secret fingerprint
// domain. Equal values produce equal fingerprints, which is the point:
// a plan records what would be injected without recording what it is.
func ComputeFingerprint(value []byte) Fingerprint {
	hasher, err := blake3.NewKeyed(secretValueKey)
	if err != nil {
		// NewKeyed fails only on a wrong key length; the key is
		// fixed at compile time.
		panic(err)
	}
	hasher.Write(value)
	var fingerprint Fingerprint
	hasher.Sum(fingerprint[:0])
	return fingerprint
}

// String returns the full 64-character hex form.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns a 12-character hex prefix for display.
func (f Fingerprint) Short() string {
	return hex.EncodeToString(f[:6])
}

// fingerprintBuffer hashes a buffer's contents into the short form
// plans record. Shared by the store implementations' Resolve methods.
func fingerprintBuffer(buffer *secret.Buffer) string {
	return ComputeFingerprint(buffer.Bytes()).Short()
}
