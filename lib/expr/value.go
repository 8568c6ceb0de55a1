// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package expr

import (
	"math"
	"strconv"
	"strings"
)

// Kind discriminates the value types the language knows.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
)

// Value is one evaluation result or context property.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Truthy reports whether the value counts as true in a boolean
// position: false, 0, NaN, "", and null are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case KindString:
		return v.s != ""
	default:
		return false
	}
}

// AsNumber coerces the value to a number: null is 0, booleans are 0
// or 1, and strings parse as decimal (the empty string is 0, anything
// unparseable is NaN).
func (v Value) AsNumber() float64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindNumber:
		return v.n
	case KindString:
		trimmed := strings.TrimSpace(v.s)
		if trimmed == "" {
			return 0
		}
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return n
	default:
		return 0
	}
}

// AsString coerces the value to a string: null is "", booleans render
// "true"/"false", numbers render without a trailing ".0".
func (v Value) AsString() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		if math.IsNaN(v.n) {
			return "NaN"
		}
		if math.IsInf(v.n, 1) {
			return "Infinity"
		}
		if math.IsInf(v.n, -1) {
			return "-Infinity"
		}
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindString:
		return v.s
	default:
		return ""
	}
}

// looseEqual implements the platform's equality: same-kind strings
// compare case-insensitively, same-kind primitives compare directly,
// and mixed kinds coerce both sides to numbers (NaN equals nothing).
func looseEqual(a, b Value) bool {
	if a.kind == b.kind {
		switch a.kind {
		case KindNull:
			return true
		case KindBool:
			return a.b == b.b
		case KindNumber:
			return a.n == b.n
		case KindString:
			return strings.EqualFold(a.s, b.s)
		}
	}
	an, bn := a.AsNumber(), b.AsNumber()
	if math.IsNaN(an) || math.IsNaN(bn) {
		return false
	}
	return an == bn
}

// looseCompare implements the relational operators by numeric
// coercion. The boolean result is false whenever either side is NaN,
// matching the platform.
func looseCompare(a, b Value, op string) bool {
	an, bn := a.AsNumber(), b.AsNumber()
	if math.IsNaN(an) || math.IsNaN(bn) {
		return false
	}
	switch op {
	case "<":
		return an < bn
	case "<=":
		return an <= bn
	case ">":
		return an > bn
	case ">=":
		return an >= bn
	}
	return false
}
