// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package pattern implements the ref filter pattern dialect used by
// branch and tag filters in workflow triggers.
//
// The dialect is glob-like with two regex-style quantifiers:
//
//   - "*" matches zero or more characters, but never "/"
//   - "**" matches zero or more of any character, including "/"
//   - "+" matches one or more of the preceding character
//   - "?" matches zero or one of the preceding character
//   - "[...]" matches one character from the listed set or ranges
//   - "\" escapes the following character
//
// A pattern starting with "!" is a negation entry. Negations have
// meaning only inside an ordered filter list: entries are evaluated in
// declaration order, a matching positive entry includes the ref, a
// matching negation after it excludes it again, and a later positive
// match re-includes it. A list containing only negations matches
// nothing.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is one compiled filter entry. Compile once, match many.
type Pattern struct {
	source  string
	negated bool
	matcher *regexp.Regexp
}

// Compile parses a single filter entry. A leading "!" marks the entry
// as a negation; use "\!" to match a literal leading exclamation mark.
func Compile(source string) (*Pattern, error) {
	if source == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	body := source
	negated := false
	if body[0] == '!' {
		negated = true
		body = body[1:]
		if body == "" {
			return nil, fmt.Errorf("pattern %q: nothing after negation", source)
		}
	}
	expr, err := translate(body)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", source, err)
	}
	matcher, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", source, err)
	}
	return &Pattern{source: source, negated: negated, matcher: matcher}, nil
}

// Match reports whether name matches the pattern body. Negation is the
// list's concern: Match on a negated pattern tests the body after "!".
func (p *Pattern) Match(name string) bool {
	return p.matcher.MatchString(name)
}

// Negated reports whether the entry began with "!".
func (p *Pattern) Negated() bool {
	return p.negated
}

// String returns the original pattern source.
func (p *Pattern) String() string {
	return p.source
}

// translate rewrites a pattern body into an anchored regular
// expression. "*" and "**" become wildcards; "+", "?", and character
// classes pass through with regex meaning; everything else is quoted.
func translate(body string) (string, error) {
	var expr strings.Builder
	expr.WriteString(`\A`)
	start := expr.Len()

	i := 0
	for i < len(body) {
		c := body[i]
		switch c {
		case '*':
			if i+1 < len(body) && body[i+1] == '*' {
				expr.WriteString(`.*`)
				i += 2
				continue
			}
			expr.WriteString(`[^/]*`)
		case '+', '?':
			if expr.Len() == start {
				return "", fmt.Errorf("quantifier %q with nothing to repeat", string(c))
			}
			expr.WriteByte(c)
		case '[':
			end := strings.IndexByte(body[i+1:], ']')
			if end < 0 {
				return "", fmt.Errorf("unclosed character class")
			}
			if end == 0 {
				return "", fmt.Errorf("empty character class")
			}
			expr.WriteString(body[i : i+end+2])
			i += end + 2
			continue
		case '\\':
			if i+1 >= len(body) {
				return "", fmt.Errorf("trailing backslash")
			}
			expr.WriteString(regexp.QuoteMeta(string(body[i+1])))
			i += 2
			continue
		default:
			expr.WriteString(regexp.QuoteMeta(string(c)))
		}
		i++
	}

	expr.WriteString(`\z`)
	return expr.String(), nil
}

// List is an ordered set of filter entries with include/negate
// semantics.
type List struct {
	patterns []*Pattern
}

// CompileList compiles each source entry in order. Returns the first
// compile error encountered.
func CompileList(sources []string) (*List, error) {
	list := &List{patterns: make([]*Pattern, 0, len(sources))}
	for _, source := range sources {
		compiled, err := Compile(source)
		if err != nil {
			return nil, err
		}
		list.patterns = append(list.patterns, compiled)
	}
	return list, nil
}

// Empty reports whether the list has no entries.
func (l *List) Empty() bool {
	return len(l.patterns) == 0
}

// Match evaluates the entries in declaration order. A positive match
// includes the name, a subsequent matching negation excludes it, a
// later positive match includes it again. The final state wins.
func (l *List) Match(name string) bool {
	matched := false
	for _, p := range l.patterns {
		if !p.Match(name) {
			continue
		}
		matched = !p.negated
	}
	return matched
}
