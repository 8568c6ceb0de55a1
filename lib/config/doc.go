// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Forgeplan
// components.
//
// Configuration is loaded from a single file specified by either the
// FORGEPLAN_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// The file holds no secrets. Forge API tokens and webhook secrets come
// from the environment (see lib/forgehub.Credentials), and the postgres
// store URL is usually spelled "${FORGEPLAN_POSTGRES_URL}" so the
// credentials never land on disk.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches.
//
// Variable expansion is performed on path-like fields after loading:
// ${HOME}, ${FORGEPLAN_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Listen, Store, Workflows, Alerts, Forge
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other Forgeplan packages.
package config
