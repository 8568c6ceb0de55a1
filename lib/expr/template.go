// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package expr

import (
	"fmt"
	"strings"
)

// Template is a string with zero or more embedded "${{ }}"
// expressions, as found in workflow fields like env values and
// secret mappings.
type Template struct {
	source string
	parts  []templatePart
}

// templatePart holds either literal text or a parsed expression,
// never both.
type templatePart struct {
	literal string
	expr    *Expr
}

// ParseTemplate parses a workflow string, extracting every embedded
// expression. A string without "${{" parses to a single literal part.
func ParseTemplate(source string) (*Template, error) {
	t := &Template{source: source}
	rest := source
	offset := 0
	for {
		start := strings.Index(rest, "${{")
		if start < 0 {
			if rest != "" {
				t.parts = append(t.parts, templatePart{literal: rest})
			}
			return t, nil
		}
		if start > 0 {
			t.parts = append(t.parts, templatePart{literal: rest[:start]})
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return nil, fmt.Errorf("position %d: unterminated \"${{\"", offset+start)
		}
		body := rest[start+3 : start+end]
		parsed, err := Parse(body)
		if err != nil {
			return nil, fmt.Errorf("expression at position %d: %w", offset+start, err)
		}
		t.parts = append(t.parts, templatePart{expr: parsed})
		rest = rest[start+end+2:]
		offset += start + end + 2
	}
}

// Source returns the original template text.
func (t *Template) Source() string {
	return t.source
}

// IsLiteral reports whether the template contains no expressions.
func (t *Template) IsLiteral() bool {
	for _, part := range t.parts {
		if part.expr != nil {
			return false
		}
	}
	return true
}

// Single returns the template's expression when the whole template is
// exactly one "${{ }}" with no surrounding text.
func (t *Template) Single() (*Expr, bool) {
	if len(t.parts) != 1 || t.parts[0].expr == nil {
		return nil, false
	}
	return t.parts[0].expr, true
}

// Expressions returns the embedded expressions in order.
func (t *Template) Expressions() []*Expr {
	var out []*Expr
	for _, part := range t.parts {
		if part.expr != nil {
			out = append(out, part.expr)
		}
	}
	return out
}

// Render evaluates every embedded expression in the scope and
// stitches the results into the literal text.
func (t *Template) Render(scope *Scope) (string, error) {
	var out strings.Builder
	for _, part := range t.parts {
		if part.expr == nil {
			out.WriteString(part.literal)
			continue
		}
		v, err := part.expr.Evaluate(scope)
		if err != nil {
			return "", fmt.Errorf("render %q: %w", part.expr.Source(), err)
		}
		out.WriteString(v.AsString())
	}
	return out.String(), nil
}

// ParseGate parses a job or step "if" value. Gates may omit the
// "${{ }}" wrapper; when present it must span the whole value.
func ParseGate(source string) (*Expr, error) {
	trimmed := strings.TrimSpace(source)
	if strings.HasPrefix(trimmed, "${{") {
		template, err := ParseTemplate(trimmed)
		if err != nil {
			return nil, err
		}
		single, ok := template.Single()
		if !ok {
			return nil, fmt.Errorf("condition mixes text and expressions")
		}
		return single, nil
	}
	return Parse(trimmed)
}
