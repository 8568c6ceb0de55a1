// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Run-store backend names for StoreConfig.Backend.
const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config is the master configuration for Forgeplan.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Listen configures the webhook HTTP server.
	Listen ListenConfig `yaml:"listen"`

	// Store configures run-record persistence.
	Store StoreConfig `yaml:"store"`

	// Workflows configures where workflow definitions come from.
	Workflows WorkflowsConfig `yaml:"workflows"`

	// Secrets selects the secret stores plans resolve against.
	Secrets SecretsConfig `yaml:"secrets"`

	// Alerts tunes the run monitor thresholds.
	Alerts AlertsConfig `yaml:"alerts"`

	// Forge configures the forge API endpoint (never its credentials).
	Forge ForgeConfig `yaml:"forge"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Listen    *ListenConfig    `yaml:"listen,omitempty"`
	Store     *StoreConfig     `yaml:"store,omitempty"`
	Workflows *WorkflowsConfig `yaml:"workflows,omitempty"`
	Secrets   *SecretsConfig   `yaml:"secrets,omitempty"`
	Alerts    *AlertsConfig    `yaml:"alerts,omitempty"`
	Forge     *ForgeConfig     `yaml:"forge,omitempty"`
}

// ListenConfig configures the webhook HTTP server.
type ListenConfig struct {
	// Address is the TCP listen address.
	// Default: :8090
	Address string `yaml:"address"`

	// ShutdownTimeout is how long in-flight requests get to finish
	// during graceful shutdown, as a Go duration string.
	// Default: 10s
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// StoreConfig configures run-record persistence.
type StoreConfig struct {
	// Backend selects the store: "file", "sqlite", or "postgres".
	// Default: file
	Backend string `yaml:"backend"`

	// Path is the snapshot file (file backend) or database file
	// (sqlite backend).
	// Default: ${FORGEPLAN_ROOT}/runs.cbor
	Path string `yaml:"path"`

	// URL is the postgres connection string. Spell it
	// "${FORGEPLAN_POSTGRES_URL}" so the credentials stay in the
	// environment rather than the file.
	URL string `yaml:"url"`

	// MaxRecords bounds the live snapshot of the file backend; older
	// records rotate into compressed archives.
	// Default: 4096
	MaxRecords int `yaml:"max_records"`

	// Compression picks the archive codec for the file backend.
	// Values: "zstd", "lz4"
	// Default: zstd
	Compression string `yaml:"compression"`
}

// WorkflowsConfig configures where workflow definitions come from.
type WorkflowsConfig struct {
	// Dir is a local directory of workflow files the service loads
	// at startup.
	Dir string `yaml:"dir"`

	// Repo is an "owner/repo" to fetch workflows from in addition
	// to, or instead of, Dir.
	Repo string `yaml:"repo"`

	// Ref pins the remote fetch to a branch or tag. Empty means the
	// repository's default branch.
	Ref string `yaml:"ref"`
}

// SecretsConfig selects the secret stores plans resolve against. The
// FORGEPLAN_SECRET_* environment variables are always consulted; these
// fields add further stores. Secret values never reach plans or logs,
// only names and value fingerprints.
type SecretsConfig struct {
	// Dir is a directory with one file per secret.
	Dir string `yaml:"dir"`

	// Bundle is an age-encrypted bundle built by "forgeplan secret seal".
	Bundle string `yaml:"bundle"`

	// Identity is the age identity file that decrypts Bundle.
	Identity string `yaml:"identity"`
}

// AlertsConfig tunes the run monitor. Zero values take the monitor's
// built-in defaults.
type AlertsConfig struct {
	// FailureWarning is the consecutive-failure count that opens a
	// warning alert.
	// Default: 3
	FailureWarning int `yaml:"failure_warning"`

	// FailureCritical is the consecutive-failure count that escalates
	// the streak alert.
	// Default: 5
	FailureCritical int `yaml:"failure_critical"`

	// DurationFactor flags runs at least this many times the rolling
	// mean duration.
	// Default: 2.0
	DurationFactor float64 `yaml:"duration_factor"`

	// DurationMinimum is how many completed runs a job needs before
	// regression checks apply.
	// Default: 5
	DurationMinimum int `yaml:"duration_minimum"`
}

// ForgeConfig configures the forge API endpoint. Credentials are
// environment-only and deliberately absent here.
type ForgeConfig struct {
	// BaseURL points at a GitHub Enterprise instance.
	// Empty means github.com.
	BaseURL string `yaml:"base_url"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "state", "forgeplan")

	return &Config{
		Environment: Development,
		Listen: ListenConfig{
			Address:         ":8090",
			ShutdownTimeout: "10s",
		},
		Store: StoreConfig{
			Backend:     StoreFile,
			Path:        filepath.Join(defaultRoot, "runs.cbor"),
			MaxRecords:  4096,
			Compression: "zstd",
		},
		Workflows: WorkflowsConfig{
			Dir: filepath.Join(defaultRoot, "workflows"),
		},
	}
}

// Load loads configuration from the FORGEPLAN_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if FORGEPLAN_CONFIG is not set, this
// fails. This ensures deterministic, auditable configuration with no hidden
// overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("FORGEPLAN_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("FORGEPLAN_CONFIG environment variable not set; " +
			"set it to the path of your forgeplan.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar variables for
// portability, and ${FORGEPLAN_POSTGRES_URL} so store credentials can stay
// out of the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Listen != nil {
		if overrides.Listen.Address != "" {
			c.Listen.Address = overrides.Listen.Address
		}
		if overrides.Listen.ShutdownTimeout != "" {
			c.Listen.ShutdownTimeout = overrides.Listen.ShutdownTimeout
		}
	}

	if overrides.Store != nil {
		if overrides.Store.Backend != "" {
			c.Store.Backend = overrides.Store.Backend
		}
		if overrides.Store.Path != "" {
			c.Store.Path = overrides.Store.Path
		}
		if overrides.Store.URL != "" {
			c.Store.URL = overrides.Store.URL
		}
		if overrides.Store.MaxRecords != 0 {
			c.Store.MaxRecords = overrides.Store.MaxRecords
		}
		if overrides.Store.Compression != "" {
			c.Store.Compression = overrides.Store.Compression
		}
	}

	if overrides.Workflows != nil {
		if overrides.Workflows.Dir != "" {
			c.Workflows.Dir = overrides.Workflows.Dir
		}
		if overrides.Workflows.Repo != "" {
			c.Workflows.Repo = overrides.Workflows.Repo
		}
		if overrides.Workflows.Ref != "" {
			c.Workflows.Ref = overrides.Workflows.Ref
		}
	}

	if overrides.Secrets != nil {
		if overrides.Secrets.Dir != "" {
			c.Secrets.Dir = overrides.Secrets.Dir
		}
		if overrides.Secrets.Bundle != "" {
			c.Secrets.Bundle = overrides.Secrets.Bundle
		}
		if overrides.Secrets.Identity != "" {
			c.Secrets.Identity = overrides.Secrets.Identity
		}
	}

	if overrides.Alerts != nil {
		if overrides.Alerts.FailureWarning != 0 {
			c.Alerts.FailureWarning = overrides.Alerts.FailureWarning
		}
		if overrides.Alerts.FailureCritical != 0 {
			c.Alerts.FailureCritical = overrides.Alerts.FailureCritical
		}
		if overrides.Alerts.DurationFactor != 0 {
			c.Alerts.DurationFactor = overrides.Alerts.DurationFactor
		}
		if overrides.Alerts.DurationMinimum != 0 {
			c.Alerts.DurationMinimum = overrides.Alerts.DurationMinimum
		}
	}

	if overrides.Forge != nil {
		if overrides.Forge.BaseURL != "" {
			c.Forge.BaseURL = overrides.Forge.BaseURL
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path-like
// fields. FORGEPLAN_ROOT resolves to the default state directory unless the
// environment sets it.
func (c *Config) expandVariables() {
	homeDir, _ := os.UserHomeDir()
	vars := map[string]string{
		"HOME":           os.Getenv("HOME"),
		"FORGEPLAN_ROOT": filepath.Join(homeDir, ".local", "state", "forgeplan"),
	}

	c.Store.Path = expandVars(c.Store.Path, vars)
	c.Store.URL = expandVars(c.Store.URL, vars)
	c.Workflows.Dir = expandVars(c.Workflows.Dir, vars)
	c.Secrets.Dir = expandVars(c.Secrets.Dir, vars)
	c.Secrets.Bundle = expandVars(c.Secrets.Bundle, vars)
	c.Secrets.Identity = expandVars(c.Secrets.Identity, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Listen.Address == "" {
		errs = append(errs, fmt.Errorf("listen.address is required"))
	}
	if c.Listen.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(c.Listen.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("listen.shutdown_timeout: %w", err))
		}
	}

	switch c.Store.Backend {
	case StoreFile, StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for the %s backend", c.Store.Backend))
		}
	case StorePostgres:
		if c.Store.URL == "" {
			errs = append(errs, fmt.Errorf("store.url is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be one of: file, sqlite, postgres"))
	}
	if c.Store.Compression != "" && c.Store.Compression != "zstd" && c.Store.Compression != "lz4" {
		errs = append(errs, fmt.Errorf("store.compression must be one of: zstd, lz4"))
	}
	if c.Store.MaxRecords < 0 {
		errs = append(errs, fmt.Errorf("store.max_records cannot be negative"))
	}

	if c.Secrets.Bundle != "" && c.Secrets.Identity == "" {
		errs = append(errs, fmt.Errorf("secrets.bundle requires secrets.identity"))
	}

	if c.Alerts.FailureWarning < 0 || c.Alerts.FailureCritical < 0 || c.Alerts.DurationMinimum < 0 {
		errs = append(errs, fmt.Errorf("alert thresholds cannot be negative"))
	}
	if c.Alerts.FailureCritical != 0 && c.Alerts.FailureCritical < c.Alerts.FailureWarning {
		errs = append(errs, fmt.Errorf("alerts.failure_critical cannot be below alerts.failure_warning"))
	}
	if c.Alerts.DurationFactor < 0 {
		errs = append(errs, fmt.Errorf("alerts.duration_factor cannot be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ShutdownGrace returns the parsed shutdown timeout, defaulting to ten
// seconds when unset or unparseable.
func (c *Config) ShutdownGrace() time.Duration {
	grace, err := time.ParseDuration(c.Listen.ShutdownTimeout)
	if err != nil || grace <= 0 {
		return 10 * time.Second
	}
	return grace
}

// EnsurePaths creates the directories the configured backends write under.
func (c *Config) EnsurePaths() error {
	var paths []string
	if c.Store.Backend == StoreFile || c.Store.Backend == StoreSQLite {
		paths = append(paths, filepath.Dir(c.Store.Path))
	}
	if c.Workflows.Dir != "" {
		paths = append(paths, c.Workflows.Dir)
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
