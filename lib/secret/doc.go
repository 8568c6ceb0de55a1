// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for sensitive material:
// store secret values, age identities, and webhook signing keys.
//
// [Buffer] allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock (preventing swap), and marks it
// excluded from core dumps via madvise(MADV_DONTDUMP). On Close, the
// memory is zeroed, unlocked, and unmapped. Because the memory lives
// outside the Go heap, the garbage collector cannot copy or relocate
// it, so secret material does not linger after release.
//
// Create buffers with [New] (zero-filled, fixed size) or
// [NewFromBytes] (copies the source into protected memory and zeros
// the source in place). [ReadFromPath] reads a secret from a file or
// stdin with whitespace trimming. Access the contents via
// [Buffer.Bytes] (a slice into the mmap region) or [Buffer.String] (a
// heap copy, for API boundaries that require strings). After Close,
// any access panics. Close is idempotent.
//
// Depends on golang.org/x/sys/unix. Imported by lib/sealed for age
// identity protection and by lib/secretstore for secret values.
package secret
