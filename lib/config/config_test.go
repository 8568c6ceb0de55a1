// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}

	if cfg.Listen.Address != ":8090" {
		t.Errorf("expected address=:8090, got %s", cfg.Listen.Address)
	}

	if cfg.Store.Backend != StoreFile {
		t.Errorf("expected backend=file, got %s", cfg.Store.Backend)
	}

	if cfg.Store.Compression != "zstd" {
		t.Errorf("expected compression=zstd, got %s", cfg.Store.Compression)
	}

	if cfg.Store.MaxRecords != 4096 {
		t.Errorf("expected max_records=4096, got %d", cfg.Store.MaxRecords)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_RequiresForgeplanConfig(t *testing.T) {
	// Save and restore FORGEPLAN_CONFIG.
	origConfig := os.Getenv("FORGEPLAN_CONFIG")
	defer os.Setenv("FORGEPLAN_CONFIG", origConfig)

	// Unset FORGEPLAN_CONFIG - Load() should fail.
	os.Unsetenv("FORGEPLAN_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when FORGEPLAN_CONFIG not set, got nil")
	}

	expectedMsg := "FORGEPLAN_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithForgeplanConfig(t *testing.T) {
	// Save and restore FORGEPLAN_CONFIG.
	origConfig := os.Getenv("FORGEPLAN_CONFIG")
	defer os.Setenv("FORGEPLAN_CONFIG", origConfig)

	// Create temp config file.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "forgeplan.yaml")

	configContent := `
environment: staging
listen:
  address: ":9100"
store:
  backend: sqlite
  path: /test/runs.db
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	// Set FORGEPLAN_CONFIG and load.
	os.Setenv("FORGEPLAN_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}

	if cfg.Listen.Address != ":9100" {
		t.Errorf("expected address=:9100, got %s", cfg.Listen.Address)
	}

	if cfg.Store.Backend != StoreSQLite {
		t.Errorf("expected backend=sqlite, got %s", cfg.Store.Backend)
	}
}

func TestLoadFile(t *testing.T) {
	// Create temp config file.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "forgeplan.yaml")

	configContent := `
environment: staging

listen:
  address: ":8443"
  shutdown_timeout: 30s

store:
  backend: file
  path: /custom/runs.cbor
  max_records: 512
  compression: lz4

workflows:
  dir: /custom/workflows
  repo: nicolargo/glances
  ref: develop

secrets:
  dir: /custom/secrets
  bundle: /custom/ci.bundle
  identity: /custom/identity

alerts:
  failure_warning: 2
  failure_critical: 4
  duration_factor: 3.0

forge:
  base_url: https://github.example.com
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}

	if cfg.Listen.Address != ":8443" {
		t.Errorf("expected address=:8443, got %s", cfg.Listen.Address)
	}

	if cfg.Store.Path != "/custom/runs.cbor" {
		t.Errorf("expected path=/custom/runs.cbor, got %s", cfg.Store.Path)
	}

	if cfg.Store.MaxRecords != 512 {
		t.Errorf("expected max_records=512, got %d", cfg.Store.MaxRecords)
	}

	if cfg.Store.Compression != "lz4" {
		t.Errorf("expected compression=lz4, got %s", cfg.Store.Compression)
	}

	if cfg.Workflows.Repo != "nicolargo/glances" {
		t.Errorf("expected repo=nicolargo/glances, got %s", cfg.Workflows.Repo)
	}

	if cfg.Secrets.Dir != "/custom/secrets" {
		t.Errorf("expected secrets dir=/custom/secrets, got %s", cfg.Secrets.Dir)
	}

	if cfg.Secrets.Bundle != "/custom/ci.bundle" || cfg.Secrets.Identity != "/custom/identity" {
		t.Errorf("expected bundle+identity from file, got %s / %s", cfg.Secrets.Bundle, cfg.Secrets.Identity)
	}

	if cfg.Alerts.FailureWarning != 2 {
		t.Errorf("expected failure_warning=2, got %d", cfg.Alerts.FailureWarning)
	}

	if cfg.Alerts.DurationFactor != 3.0 {
		t.Errorf("expected duration_factor=3.0, got %v", cfg.Alerts.DurationFactor)
	}

	if cfg.Forge.BaseURL != "https://github.example.com" {
		t.Errorf("expected base_url=https://github.example.com, got %s", cfg.Forge.BaseURL)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "forgeplan.yaml")

	configContent := `
environment: production

listen:
  address: ":8090"

store:
  backend: file
  path: /default/runs.cbor

production:
  listen:
    address: ":443"
  store:
    backend: postgres
    url: postgres://forgeplan@db/runs
  alerts:
    failure_warning: 5
    failure_critical: 8
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	// Production overrides should be applied.
	if cfg.Listen.Address != ":443" {
		t.Errorf("expected address=:443, got %s", cfg.Listen.Address)
	}

	if cfg.Store.Backend != StorePostgres {
		t.Errorf("expected backend=postgres, got %s", cfg.Store.Backend)
	}

	if cfg.Store.URL != "postgres://forgeplan@db/runs" {
		t.Errorf("expected postgres url from override, got %s", cfg.Store.URL)
	}

	if cfg.Alerts.FailureWarning != 5 {
		t.Errorf("expected failure_warning=5, got %d", cfg.Alerts.FailureWarning)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("overridden config should validate: %v", err)
	}
}

func TestOverridesIgnoredForOtherEnvironment(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "forgeplan.yaml")

	configContent := `
environment: development

listen:
  address: ":8090"

production:
  listen:
    address: ":443"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Listen.Address != ":8090" {
		t.Errorf("production override leaked into development: got %s", cfg.Listen.Address)
	}
}

func TestStoreURLExpansion(t *testing.T) {
	// Save and restore the env var.
	origURL := os.Getenv("FORGEPLAN_POSTGRES_URL")
	defer os.Setenv("FORGEPLAN_POSTGRES_URL", origURL)
	os.Setenv("FORGEPLAN_POSTGRES_URL", "postgres://ci:secret@db:5432/runs")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "forgeplan.yaml")

	configContent := `
store:
  backend: postgres
  url: ${FORGEPLAN_POSTGRES_URL}
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Store.URL != "postgres://ci:secret@db:5432/runs" {
		t.Errorf("expected expanded postgres url, got %s", cfg.Store.URL)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/forgeplan",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/forgeplan",
		},
		{
			input:    "${MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid environment",
			modify: func(c *Config) {
				c.Environment = "invalid"
			},
			wantErr: true,
		},
		{
			name: "empty listen address",
			modify: func(c *Config) {
				c.Listen.Address = ""
			},
			wantErr: true,
		},
		{
			name: "bad shutdown timeout",
			modify: func(c *Config) {
				c.Listen.ShutdownTimeout = "soon"
			},
			wantErr: true,
		},
		{
			name: "unknown backend",
			modify: func(c *Config) {
				c.Store.Backend = "redis"
			},
			wantErr: true,
		},
		{
			name: "file backend without path",
			modify: func(c *Config) {
				c.Store.Path = ""
			},
			wantErr: true,
		},
		{
			name: "postgres backend without url",
			modify: func(c *Config) {
				c.Store.Backend = StorePostgres
				c.Store.URL = ""
			},
			wantErr: true,
		},
		{
			name: "postgres backend with url",
			modify: func(c *Config) {
				c.Store.Backend = StorePostgres
				c.Store.URL = "postgres://localhost/runs"
			},
			wantErr: false,
		},
		{
			name: "invalid compression",
			modify: func(c *Config) {
				c.Store.Compression = "brotli"
			},
			wantErr: true,
		},
		{
			name: "bundle without identity",
			modify: func(c *Config) {
				c.Secrets.Bundle = "/etc/forgeplan/ci.bundle"
			},
			wantErr: true,
		},
		{
			name: "critical below warning",
			modify: func(c *Config) {
				c.Alerts.FailureWarning = 5
				c.Alerts.FailureCritical = 3
			},
			wantErr: true,
		},
		{
			name: "negative duration factor",
			modify: func(c *Config) {
				c.Alerts.DurationFactor = -1
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestShutdownGrace(t *testing.T) {
	cfg := Default()
	if got := cfg.ShutdownGrace(); got != 10*time.Second {
		t.Errorf("default grace = %v, want 10s", got)
	}

	cfg.Listen.ShutdownTimeout = "45s"
	if got := cfg.ShutdownGrace(); got != 45*time.Second {
		t.Errorf("grace = %v, want 45s", got)
	}

	cfg.Listen.ShutdownTimeout = "not-a-duration"
	if got := cfg.ShutdownGrace(); got != 10*time.Second {
		t.Errorf("unparseable grace = %v, want 10s fallback", got)
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Store.Path = filepath.Join(tmpDir, "state", "runs.cbor")
	cfg.Workflows.Dir = filepath.Join(tmpDir, "workflows")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	// Verify directories were created.
	for _, path := range []string{filepath.Dir(cfg.Store.Path), cfg.Workflows.Dir} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
