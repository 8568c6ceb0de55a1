// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package expr implements the expression language used in workflow
// "if" gates and "${{ ... }}" interpolations.
//
// The language is the platform dialect that workflow authors already
// know: single-quoted strings, numbers, booleans, null, dotted and
// bracketed context property access (github.event_name,
// secrets['DOCKER_TOKEN']), comparison and boolean operators, and a
// small function set (contains, startsWith, endsWith, format, plus
// the status functions always, success, failure, cancelled).
//
// Evaluation follows the platform's loose typing: operands of
// relational comparisons coerce to numbers, string equality is
// case-insensitive, missing context properties resolve to null rather
// than failing, and && / || return their operand values so the
// "cond && 'a' || 'b'" idiom works.
//
// Parsing and evaluation are separate steps so that structural
// validation can syntax-check every gate in a workflow file without an
// event context.
package expr
