// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package forge defines the provider-agnostic event model consumed by
// trigger evaluation and planning. The webhook service translates
// native forge payloads (GitHub and compatible APIs) into these typed
// structs; evaluation code never touches raw webhook JSON.
package forge
