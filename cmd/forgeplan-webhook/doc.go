// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Forgeplan webhook service. Receives forge webhook deliveries,
// translates them into provider-agnostic forge schema events, and
// observes: push, pull_request, and workflow_dispatch events are
// evaluated against the configured workflow directory and the
// resulting execution plans logged; completed workflow_run and
// workflow_job events become run records feeding the duration series
// and threshold alerts. Nothing is ever executed.
//
// HTTP surface:
//   - POST /webhook: webhook ingestion (HMAC-SHA256 verified,
//     delivery-ID replay suppression)
//   - GET /healthz: liveness
//   - GET /api/plans/latest, /api/runs, /api/stats, /api/alerts:
//     JSON read API over the observed state
//
// Configuration comes from the YAML file named by --config or
// FORGEPLAN_CONFIG (listen address, workflow directory, run store,
// secret stores, alert thresholds). Plans resolve secret mappings
// against the configured stores into name+fingerprint pairs; values
// never appear in plans or logs. Credentials come only from the
// environment:
//   - FORGEPLAN_WEBHOOK_SECRET: shared HMAC secret (required)
//   - FORGEPLAN_GITHUB_TOKEN: forge API token, used when the config
//     names a remote workflow repository (optional)
//   - FORGEPLAN_SECRET_*: environment-backed secret store entries
package main
