// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the forgeplan CLI.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a [pflag.FlagSet] factory, and a
// Run function. Commands are assembled into a tree in cmd/forgeplan/main.go
// and dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and structured help output with examples.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3). This is implemented in
// suggest.go.
//
// Command parameters bind to flags through struct tags via [BindFlags]
// and [FlagsFromParams]; embedding [JSONOutput] in a params struct adds
// the --json flag and the EmitJSON output path. Handled non-zero exits
// (lint failures, missing secrets) return [ExitError] so main can exit
// with the right code without printing a redundant error line.
package cli
