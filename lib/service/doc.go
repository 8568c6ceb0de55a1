// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides shared HTTP infrastructure for Forgeplan
// services.
//
// A Forgeplan service is a standalone Go binary serving HTTP: the
// webhook receiver listens for forge deliveries and exposes a small
// read API over the run store. This package extracts the scaffolding
// every such binary needs:
//
//   - Server lifecycle: bind a TCP listener, signal readiness, serve
//     until the context is cancelled, then drain in-flight requests
//     within a shutdown deadline.
//   - Request logging: one structured log line per completed request,
//     carrying the forge delivery ID when present.
//
// Services compose these utilities in their own main() function rather
// than subclassing a framework. The package provides building blocks,
// not a runtime. Routing lives with the caller (chi), and webhook
// signature verification lives in lib/forgehub next to the payload
// translation it protects.
package service
