// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package secretstore

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/forgeplan/forgeplan/lib/sealed"
)

func TestComputeFingerprint(t *testing.T) {
	t.Parallel()

	first := ComputeFingerprint([]byte("dckr_pat_k9mN2xVq8wL5tRfY3hJ7"))
	again := ComputeFingerprint([]byte("dckr_pat_k9mN2xVq8wL5tRfY3hJ7"))
	other := ComputeFingerprint([]byte("dckr_pat_k9mN2xVq8wL5tRfY3hJ8"))

	if first != again {
		t.Error("fingerprint is not deterministic")
	}
	if first == other {
		t.Error("distinct values share a fingerprint")
	}
	if len(first.String()) != 64 {
		t.Errorf("String length = %d, want 64", len(first.String()))
	}
	if short := first.Short(); len(short) != 12 || first.String()[:12] != short {
		t.Errorf("Short = %q, want 12-char prefix of %q", short, first.String())
	}
}

func TestEnvStore(t *testing.T) {
	t.Parallel()

	store := NewEnvStore([]string{
		"HOME=/root",
		"FORGEPLAN_SECRET_DOCKER_TOKEN=dckr_pat_k9mN2xVq8wL5tRfY3hJ7",
		"FORGEPLAN_SECRET_TWINE_PASSWORD=pypi-AgEIcHlwaS5vcmc",
		"FORGEPLAN_SECRET_=missing name",
		"FORGEPLAN_SECRET_BAD-NAME=hyphen",
		"FORGEPLAN_SECRET_EMPTY=",
		"MALFORMED",
	})

	want := []string{"DOCKER_TOKEN", "TWINE_PASSWORD"}
	if got := store.Names(); !slices.Equal(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}

	fingerprint, ok := store.Resolve("DOCKER_TOKEN")
	if !ok || fingerprint != ComputeFingerprint([]byte("dckr_pat_k9mN2xVq8wL5tRfY3hJ7")).Short() {
		t.Errorf("Resolve(DOCKER_TOKEN) = %q, %v", fingerprint, ok)
	}
	if _, ok := store.Resolve("AWS_KEY"); ok {
		t.Error("Resolve(AWS_KEY) = ok for an absent secret")
	}

	buffer, err := store.Open("TWINE_PASSWORD")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer buffer.Close()
	if buffer.String() != "pypi-AgEIcHlwaS5vcmc" {
		t.Errorf("Open value = %q", buffer.String())
	}

	if _, err := store.Open("AWS_KEY"); err == nil {
		t.Error("Open(AWS_KEY) succeeded for an absent secret")
	}
}

func TestDirStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	writeFile("DOCKER_TOKEN", "dckr_pat_k9mN2xVq8wL5tRfY3hJ7\n")
	writeFile("TWINE_USERNAME", "__token__")
	writeFile("not-a-secret.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "SUBDIR"), 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	store, err := NewDirStore(dir)
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}

	want := []string{"DOCKER_TOKEN", "TWINE_USERNAME"}
	if got := store.Names(); !slices.Equal(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}

	buffer, err := store.Open("DOCKER_TOKEN")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer buffer.Close()
	if buffer.String() != "dckr_pat_k9mN2xVq8wL5tRfY3hJ7" {
		t.Errorf("Open value = %q, want trimmed contents", buffer.String())
	}

	fingerprint, ok := store.Resolve("DOCKER_TOKEN")
	if !ok || fingerprint != ComputeFingerprint([]byte("dckr_pat_k9mN2xVq8wL5tRfY3hJ7")).Short() {
		t.Errorf("Resolve = %q, %v", fingerprint, ok)
	}

	// Deleting the file after the scan turns Resolve into a miss.
	if err := os.Remove(filepath.Join(dir, "TWINE_USERNAME")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := store.Resolve("TWINE_USERNAME"); ok {
		t.Error("Resolve succeeded for a deleted secret file")
	}
}

func TestNewDirStoreMissingDirectory(t *testing.T) {
	t.Parallel()

	if _, err := NewDirStore("/nonexistent/secrets"); err == nil {
		t.Error("NewDirStore should fail on a missing directory")
	}
}

// sealTestBundle seals a DirStore built from the given values and
// writes the bundle file, returning its path.
func sealTestBundle(t *testing.T, values map[string]string, recipient string) string {
	t.Helper()

	dir := t.TempDir()
	for name, value := range values {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(value), 0600); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	source, err := NewDirStore(dir)
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}

	ciphertext, err := SealBundle(source, []string{recipient})
	if err != nil {
		t.Fatalf("SealBundle: %v", err)
	}
	path := filepath.Join(t.TempDir(), "secrets.age")
	if err := os.WriteFile(path, []byte(ciphertext+"\n"), 0600); err != nil {
		t.Fatalf("writing bundle: %v", err)
	}
	return path
}

func TestSealedStoreRoundtrip(t *testing.T) {
	t.Parallel()

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer keypair.Close()

	path := sealTestBundle(t, map[string]string{
		"DOCKER_TOKEN":   "dckr_pat_k9mN2xVq8wL5tRfY3hJ7",
		"TWINE_PASSWORD": "pypi-AgEIcHlwaS5vcmc",
	}, keypair.PublicKey)

	store, err := NewSealedStore(path, keypair.PrivateKey)
	if err != nil {
		t.Fatalf("NewSealedStore: %v", err)
	}
	defer store.Close()

	want := []string{"DOCKER_TOKEN", "TWINE_PASSWORD"}
	if got := store.Names(); !slices.Equal(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}

	buffer, err := store.Open("DOCKER_TOKEN")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer buffer.Close()
	if buffer.String() != "dckr_pat_k9mN2xVq8wL5tRfY3hJ7" {
		t.Errorf("Open value = %q", buffer.String())
	}

	fingerprint, ok := store.Resolve("TWINE_PASSWORD")
	if !ok || fingerprint != ComputeFingerprint([]byte("pypi-AgEIcHlwaS5vcmc")).Short() {
		t.Errorf("Resolve = %q, %v", fingerprint, ok)
	}

	if _, err := store.Open("AWS_KEY"); err == nil {
		t.Error("Open(AWS_KEY) succeeded for an absent secret")
	}
}

func TestSealedStoreWrongIdentity(t *testing.T) {
	t.Parallel()

	owner, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer owner.Close()
	stranger, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer stranger.Close()

	path := sealTestBundle(t, map[string]string{"TOKEN": "value"}, owner.PublicKey)

	if _, err := NewSealedStore(path, stranger.PrivateKey); err == nil {
		t.Error("NewSealedStore succeeded with the wrong identity")
	}
}

func TestSealBundleRequiresSecrets(t *testing.T) {
	t.Parallel()

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer keypair.Close()

	empty, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	if _, err := SealBundle(empty, []string{keypair.PublicKey}); err == nil {
		t.Error("SealBundle of an empty store should fail")
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "DOCKER_TOKEN"), []byte("from-directory"), 0600); err != nil {
		t.Fatalf("writing secret: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "AWS_KEY"), []byte("AKIA1234"), 0600); err != nil {
		t.Fatalf("writing secret: %v", err)
	}
	dirStore, err := NewDirStore(dir)
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}

	envStore := NewEnvStore([]string{"FORGEPLAN_SECRET_DOCKER_TOKEN=from-environment"})
	merged := Merge(envStore, dirStore)

	want := []string{"AWS_KEY", "DOCKER_TOKEN"}
	if got := merged.Names(); !slices.Equal(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}

	// The environment entry shadows the directory entry.
	fingerprint, ok := merged.Resolve("DOCKER_TOKEN")
	if !ok || fingerprint != ComputeFingerprint([]byte("from-environment")).Short() {
		t.Errorf("Resolve(DOCKER_TOKEN) = %q, want the environment value's fingerprint", fingerprint)
	}

	buffer, err := merged.Open("AWS_KEY")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer buffer.Close()
	if buffer.String() != "AKIA1234" {
		t.Errorf("Open(AWS_KEY) = %q", buffer.String())
	}

	if _, ok := merged.Resolve("MISSING"); ok {
		t.Error("Resolve(MISSING) = ok")
	}
	if _, err := merged.Open("MISSING"); err == nil {
		t.Error("Open(MISSING) succeeded")
	}
}
