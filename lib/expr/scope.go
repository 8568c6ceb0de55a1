// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package expr

import "strings"

// Scope supplies context properties and the run-status assumption to
// evaluation.
//
// Properties is a tree of nested map[string]any values. Leaves may be
// string, bool, int, int64, float64, nil, or Value. Lookup is
// case-insensitive at every level, matching the platform. A missing
// property resolves to null rather than an error, so gates like
// "github.head_ref != ''" behave sensibly on events without the
// property.
//
// The status flags drive the success()/failure()/cancelled()
// functions. always() is true regardless.
type Scope struct {
	Properties map[string]any
	Success    bool
	Failure    bool
	Cancelled  bool
}

// resolve walks the property tree along path. Missing or non-map
// intermediate nodes yield null.
func (s *Scope) resolve(path []string) Value {
	if s == nil {
		return Null()
	}
	var current any = s.Properties
	for _, segment := range path {
		tree, ok := current.(map[string]any)
		if !ok {
			return Null()
		}
		current, ok = lookupFold(tree, segment)
		if !ok {
			return Null()
		}
	}
	return toValue(current)
}

// lookupFold finds a key in the map case-insensitively, preferring an
// exact match.
func lookupFold(tree map[string]any, key string) (any, bool) {
	if v, ok := tree[key]; ok {
		return v, true
	}
	for k, v := range tree {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// toValue converts a property leaf into a Value. Unconvertible leaves
// (nested maps referenced as scalars) become null, mirroring how the
// platform stringifies objects only in specific positions.
func toValue(leaf any) Value {
	switch typed := leaf.(type) {
	case nil:
		return Null()
	case Value:
		return typed
	case string:
		return String(typed)
	case bool:
		return Bool(typed)
	case int:
		return Number(float64(typed))
	case int64:
		return Number(float64(typed))
	case float64:
		return Number(typed)
	default:
		return Null()
	}
}
