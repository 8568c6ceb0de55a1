// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflow defines the declarative workflow document model:
// triggers, jobs, steps, and secret mappings. The types mirror the
// GitHub-Actions-shaped YAML dialect, including its polymorphic forms
// ("on" as scalar, list, or map; "needs" as scalar or list; "secrets"
// as map or the literal "inherit").
//
// Parsing is lenient: keys outside the modeled surface are ignored so
// that real-world workflow files with platform features Forgeplan does
// not evaluate (matrix strategies, container jobs, permissions) still
// load. Structural validation lives in lib/workflowdef.
package workflow
