// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package workflowdef

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Fingerprint is a 32-byte BLAKE3 digest identifying one workflow
// definition revision. Run records reference definitions by
// fingerprint so that observed behavior can be traced to the exact
// bytes that produced it, independent of file renames.
type Fingerprint [32]byte

// workflowDomainKey is the BLAKE3 key for workflow fingerprints.
// Domain separation keeps these digests from colliding with other
// keyed hashes over the same bytes (secret fingerprints most
// notably). The byte values are the ASCII encoding of the domain
// name, zero-padded to 32 bytes: readable in hex dumps without
// sacrificing any cryptographic property (keyed mode treats the key
// as an opaque 32-byte value). Changing the key invalidates every
// stored fingerprint.
var workflowDomainKey = [32]byte{
	'f', 'o', 'r', 'g', 'e', 'p', 'l', 'a', 'n', '.',
	'w', 'o', 'r', 'k', 'f', 'l', 'o', 'w', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ComputeFingerprint hashes the raw definition bytes. Fingerprints
// are computed over the bytes as authored, not a normalized form:
// reformatting a workflow is a revision.
func ComputeFingerprint(data []byte) Fingerprint {
	hasher, err := blake3.NewKeyed(workflowDomainKey[:])
	if err != nil {
		panic("workflowdef: BLAKE3 keyed hash initialization failed (key must be 32 bytes): " + err.Error())
	}
	hasher.Write(data)
	var fingerprint Fingerprint
	copy(fingerprint[:], hasher.Sum(nil))
	return fingerprint
}

// String returns the full lowercase hex encoding.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 12 hex characters, enough to disambiguate
// in listings.
func (f Fingerprint) Short() string {
	return hex.EncodeToString(f[:6])
}

// IsZero reports whether the fingerprint is unset.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// ParseFingerprint decodes a full 64-character hex fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fingerprint Fingerprint
	if len(s) != hex.EncodedLen(len(fingerprint)) {
		return Fingerprint{}, fmt.Errorf("fingerprint must be %d hex characters, got %d",
			hex.EncodedLen(len(fingerprint)), len(s))
	}
	if _, err := hex.Decode(fingerprint[:], []byte(s)); err != nil {
		return Fingerprint{}, fmt.Errorf("decoding fingerprint: %w", err)
	}
	return fingerprint, nil
}
