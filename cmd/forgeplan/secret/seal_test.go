// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forgeplan/forgeplan/lib/sealed"
	"github.com/forgeplan/forgeplan/lib/secretstore"
)

func TestSealRoundtrip(t *testing.T) {
	t.Parallel()

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer keypair.Close()

	dir := writeSecretDir(t, map[string]string{
		"TWINE_USERNAME": "twine-user",
		"TWINE_PASSWORD": "twine-pass",
	})
	output := filepath.Join(t.TempDir(), "ci.bundle")

	cmd := sealCommand()
	err = cmd.Execute(context.Background(),
		[]string{dir, "--recipient", keypair.PublicKey, "--output", output}, testLogger())
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	store, err := secretstore.NewSealedStore(output, keypair.PrivateKey)
	if err != nil {
		t.Fatalf("NewSealedStore: %v", err)
	}
	defer store.Close()

	if got, want := strings.Join(store.Names(), ","), "TWINE_PASSWORD,TWINE_USERNAME"; got != want {
		t.Errorf("Names = %q, want %q", got, want)
	}
	fingerprint, ok := store.Resolve("TWINE_USERNAME")
	if !ok || fingerprint == "" {
		t.Errorf("Resolve(TWINE_USERNAME) = %q, %v", fingerprint, ok)
	}
}

func TestSealThenCheckBundle(t *testing.T) {
	t.Parallel()

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer keypair.Close()

	dir := writeSecretDir(t, map[string]string{
		"TWINE_USERNAME":  "twine-user",
		"TWINE_PASSWORD":  "twine-pass",
		"DOCKER_USERNAME": "docker-user",
		"DOCKER_TOKEN":    "docker-token",
	})
	scratch := t.TempDir()
	bundle := filepath.Join(scratch, "ci.bundle")

	seal := sealCommand()
	err = seal.Execute(context.Background(),
		[]string{dir, "--recipient", keypair.PublicKey, "--output", bundle}, testLogger())
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	identity := filepath.Join(scratch, "identity")
	if err := os.WriteFile(identity, keypair.PrivateKey.Bytes(), 0o600); err != nil {
		t.Fatalf("writing identity: %v", err)
	}

	workflow := writeFixture(t, "release.yml", releaseDocument)
	check := checkCommand()
	err = check.Execute(context.Background(),
		[]string{workflow, "--bundle", bundle, "--identity", identity}, testLogger())
	if err != nil {
		t.Fatalf("every mapped name is in the bundle, check must pass: %v", err)
	}
}

func TestSealToStdout(t *testing.T) {
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer keypair.Close()

	dir := writeSecretDir(t, map[string]string{"DOCKER_TOKEN": "docker-token"})

	cmd := sealCommand()
	var execErr error
	output := captureStdout(t, func() {
		execErr = cmd.Execute(context.Background(),
			[]string{dir, "--recipient", keypair.PublicKey}, testLogger())
	})
	if execErr != nil {
		t.Fatalf("seal: %v", execErr)
	}
	if strings.TrimSpace(output) == "" {
		t.Fatal("no ciphertext on stdout")
	}
	if strings.Contains(output, "docker-token") {
		t.Error("plaintext leaked into the bundle output")
	}
}

func TestSealInvalidRecipient(t *testing.T) {
	t.Parallel()

	cmd := sealCommand()
	err := cmd.Execute(context.Background(),
		[]string{"secrets", "--recipient", "age1notakey"}, testLogger())
	if err == nil || !strings.Contains(err.Error(), "invalid recipient") {
		t.Errorf("err = %v, want invalid recipient", err)
	}
}

func TestSealRequiresRecipient(t *testing.T) {
	t.Parallel()

	cmd := sealCommand()
	err := cmd.Execute(context.Background(), []string{"secrets"}, testLogger())
	if err == nil || !strings.Contains(err.Error(), "at least one --recipient") {
		t.Errorf("err = %v, want recipient requirement", err)
	}
}

func TestSealEmptyDir(t *testing.T) {
	t.Parallel()

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer keypair.Close()

	cmd := sealCommand()
	err = cmd.Execute(context.Background(),
		[]string{t.TempDir(), "--recipient", keypair.PublicKey}, testLogger())
	if err == nil || !strings.Contains(err.Error(), "no secrets to seal") {
		t.Errorf("err = %v, want no-secrets error", err)
	}
}

func TestSealUsage(t *testing.T) {
	t.Parallel()

	cmd := sealCommand()
	err := cmd.Execute(context.Background(), nil, testLogger())
	if err == nil || !strings.Contains(err.Error(), "usage:") {
		t.Errorf("err = %v, want usage error", err)
	}
}
