// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a parsed expression ready for evaluation.
type Expr struct {
	source string
	root   node
}

// Parse parses an expression body (without "${{ }}" delimiters).
func Parse(source string) (*Expr, error) {
	tokens, err := scan(source)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, fmt.Errorf("position %d: unexpected %q", tok.pos, tok.text)
	}
	return &Expr{source: source, root: root}, nil
}

// Source returns the original expression text.
func (e *Expr) Source() string {
	return e.source
}

// Evaluate computes the expression's value in the given scope.
func (e *Expr) Evaluate(scope *Scope) (Value, error) {
	return e.root.eval(scope)
}

// EvaluateBool computes the expression and applies truthiness, the
// interpretation "if" gates use.
func (e *Expr) EvaluateBool(scope *Scope) (bool, error) {
	v, err := e.root.eval(scope)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// Calls reports whether the expression invokes the named function
// anywhere. Case-insensitive. Planning uses this to detect always()
// gates, which override skip propagation.
func (e *Expr) Calls(name string) bool {
	found := false
	walk(e.root, func(n node) {
		if call, ok := n.(*callNode); ok && strings.EqualFold(call.name, name) {
			found = true
		}
	})
	return found
}

// UsesContext reports whether the expression reads any property of
// the named top-level context (for example "secrets").
func (e *Expr) UsesContext(name string) bool {
	found := false
	walk(e.root, func(n node) {
		if prop, ok := n.(*propNode); ok && len(prop.segments) > 0 {
			if first := prop.segments[0]; first.dynamic == nil && strings.EqualFold(first.static, name) {
				found = true
			}
		}
	})
	return found
}

// PropertyPath returns the dotted path when the whole expression is a
// single static property access ("secrets.DOCKER_TOKEN" yields
// ["secrets", "DOCKER_TOKEN"]). Returns false for anything else.
func (e *Expr) PropertyPath() ([]string, bool) {
	prop, ok := e.root.(*propNode)
	if !ok {
		return nil, false
	}
	path := make([]string, 0, len(prop.segments))
	for _, segment := range prop.segments {
		if segment.dynamic != nil {
			// Static-only for callers; bracketed string literals
			// count as static.
			lit, ok := segment.dynamic.(*litNode)
			if !ok || lit.value.Kind() != KindString {
				return nil, false
			}
			path = append(path, lit.value.AsString())
			continue
		}
		path = append(path, segment.static)
	}
	return path, true
}

// --- AST ---

type node interface {
	eval(scope *Scope) (Value, error)
}

type litNode struct {
	value Value
}

func (n *litNode) eval(*Scope) (Value, error) {
	return n.value, nil
}

type propSegment struct {
	static  string
	dynamic node // non-nil for [expr] segments
}

type propNode struct {
	segments []propSegment
}

func (n *propNode) eval(scope *Scope) (Value, error) {
	path := make([]string, 0, len(n.segments))
	for _, segment := range n.segments {
		if segment.dynamic != nil {
			key, err := segment.dynamic.eval(scope)
			if err != nil {
				return Value{}, err
			}
			path = append(path, key.AsString())
			continue
		}
		path = append(path, segment.static)
	}
	return scope.resolve(path), nil
}

type unaryNode struct {
	op      byte // '!' or '-'
	operand node
}

func (n *unaryNode) eval(scope *Scope) (Value, error) {
	v, err := n.operand.eval(scope)
	if err != nil {
		return Value{}, err
	}
	if n.op == '!' {
		return Bool(!v.Truthy()), nil
	}
	return Number(-v.AsNumber()), nil
}

type binaryNode struct {
	op    string
	left  node
	right node
}

func (n *binaryNode) eval(scope *Scope) (Value, error) {
	left, err := n.left.eval(scope)
	if err != nil {
		return Value{}, err
	}
	switch n.op {
	case "&&":
		if !left.Truthy() {
			return left, nil
		}
		return n.right.eval(scope)
	case "||":
		if left.Truthy() {
			return left, nil
		}
		return n.right.eval(scope)
	}
	right, err := n.right.eval(scope)
	if err != nil {
		return Value{}, err
	}
	switch n.op {
	case "==":
		return Bool(looseEqual(left, right)), nil
	case "!=":
		return Bool(!looseEqual(left, right)), nil
	default:
		return Bool(looseCompare(left, right, n.op)), nil
	}
}

type callNode struct {
	name string
	args []node
}

func (n *callNode) eval(scope *Scope) (Value, error) {
	switch strings.ToLower(n.name) {
	case "always":
		return Bool(true), nil
	case "success":
		return Bool(scope != nil && scope.Success), nil
	case "failure":
		return Bool(scope != nil && scope.Failure), nil
	case "cancelled":
		return Bool(scope != nil && scope.Cancelled), nil
	}

	args := make([]Value, len(n.args))
	for i, arg := range n.args {
		v, err := arg.eval(scope)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}

	switch strings.ToLower(n.name) {
	case "contains":
		haystack := strings.ToLower(args[0].AsString())
		needle := strings.ToLower(args[1].AsString())
		return Bool(strings.Contains(haystack, needle)), nil
	case "startswith":
		s, prefix := args[0].AsString(), args[1].AsString()
		return Bool(len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)), nil
	case "endswith":
		s, suffix := args[0].AsString(), args[1].AsString()
		return Bool(len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)), nil
	case "format":
		return formatValue(args)
	}
	return Value{}, fmt.Errorf("unknown function %q", n.name)
}

// formatValue implements format('{0} of {1}', a, b) with "{{" and
// "}}" as literal braces.
func formatValue(args []Value) (Value, error) {
	pattern := args[0].AsString()
	var out strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '{':
			if i+1 < len(pattern) && pattern[i+1] == '{' {
				out.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(pattern[i+1:], '}')
			if end < 0 {
				return Value{}, fmt.Errorf("format: unclosed placeholder")
			}
			index, err := strconv.Atoi(pattern[i+1 : i+1+end])
			if err != nil {
				return Value{}, fmt.Errorf("format: bad placeholder %q", pattern[i+1:i+1+end])
			}
			if index < 0 || index+1 >= len(args) {
				return Value{}, fmt.Errorf("format: placeholder {%d} out of range", index)
			}
			out.WriteString(args[index+1].AsString())
			i += end + 1
		case '}':
			if i+1 < len(pattern) && pattern[i+1] == '}' {
				out.WriteByte('}')
				i++
				continue
			}
			return Value{}, fmt.Errorf("format: unmatched \"}\"")
		default:
			out.WriteByte(c)
		}
	}
	return String(out.String()), nil
}

// walk visits every node in the tree.
func walk(n node, visit func(node)) {
	visit(n)
	switch typed := n.(type) {
	case *unaryNode:
		walk(typed.operand, visit)
	case *binaryNode:
		walk(typed.left, visit)
		walk(typed.right, visit)
	case *callNode:
		for _, arg := range typed.args {
			walk(arg, visit)
		}
	case *propNode:
		for _, segment := range typed.segments {
			if segment.dynamic != nil {
				walk(segment.dynamic, visit)
			}
		}
	}
}

// --- Parser ---

// functionArity lists the known functions with their argument bounds.
// A max of -1 means variadic.
var functionArity = map[string]struct{ min, max int }{
	"contains":   {2, 2},
	"startswith": {2, 2},
	"endswith":   {2, 2},
	"format":     {1, -1},
	"always":     {0, 0},
	"success":    {0, 0},
	"failure":    {0, 0},
	"cancelled":  {0, 0},
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(text string) error {
	tok := p.advance()
	if tok.kind != tokenOp || tok.text != text {
		return fmt.Errorf("position %d: expected %q, got %q", tok.pos, text, tok.text)
	}
	return nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOp && p.peek().text == "||" {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "||", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOp && p.peek().text == "&&" {
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "&&", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (node, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOp && (p.peek().text == "==" || p.peek().text == "!=") {
		op := p.advance().text
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseRelational() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOp {
		switch p.peek().text {
		case "<", "<=", ">", ">=":
			op := p.advance().text
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &binaryNode{op: op, left: left, right: right}
			continue
		}
		break
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	tok := p.peek()
	if tok.kind == tokenOp && (tok.text == "!" || tok.text == "-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: tok.text[0], operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokenOp || (tok.text != "." && tok.text != "[") {
			return base, nil
		}
		prop, ok := base.(*propNode)
		if !ok {
			return nil, fmt.Errorf("position %d: property access on a non-context value", tok.pos)
		}
		p.advance()
		if tok.text == "." {
			ident := p.advance()
			if ident.kind != tokenIdent {
				return nil, fmt.Errorf("position %d: expected property name after \".\"", ident.pos)
			}
			prop.segments = append(prop.segments, propSegment{static: ident.text})
			continue
		}
		index, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		prop.segments = append(prop.segments, propSegment{dynamic: index})
	}
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.advance()
	switch tok.kind {
	case tokenNumber:
		return &litNode{value: Number(tok.num)}, nil
	case tokenString:
		return &litNode{value: String(tok.str)}, nil
	case tokenIdent:
		switch tok.text {
		case "true":
			return &litNode{value: Bool(true)}, nil
		case "false":
			return &litNode{value: Bool(false)}, nil
		case "null":
			return &litNode{value: Null()}, nil
		}
		if p.peek().kind == tokenOp && p.peek().text == "(" {
			return p.parseCall(tok)
		}
		return &propNode{segments: []propSegment{{static: tok.text}}}, nil
	case tokenOp:
		if tok.text == "(" {
			inner, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, fmt.Errorf("position %d: unexpected %q", tok.pos, tok.text)
}

func (p *parser) parseCall(name token) (node, error) {
	arity, known := functionArity[strings.ToLower(name.text)]
	if !known {
		return nil, fmt.Errorf("position %d: unknown function %q", name.pos, name.text)
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var args []node
	if !(p.peek().kind == tokenOp && p.peek().text == ")") {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind == tokenOp && p.peek().text == "," {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if len(args) < arity.min || (arity.max >= 0 && len(args) > arity.max) {
		return nil, fmt.Errorf("position %d: function %q takes %s, got %d",
			name.pos, name.text, describeArity(arity.min, arity.max), len(args))
	}
	return &callNode{name: name.text, args: args}, nil
}

func describeArity(min, max int) string {
	if max < 0 {
		return fmt.Sprintf("at least %d arguments", min)
	}
	if min == max {
		return fmt.Sprintf("%d arguments", min)
	}
	return fmt.Sprintf("%d to %d arguments", min, max)
}

// --- Scanner ---

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
	num  float64
	str  string
}

func scan(source string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(source) {
		c := source[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			start := i
			for i < len(source) && isIdentPart(source[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: source[start:i], pos: start})
		case c >= '0' && c <= '9':
			start := i
			for i < len(source) && isNumberPart(source[i]) {
				i++
			}
			text := source[start:i]
			num, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("position %d: bad number %q", start, text)
			}
			tokens = append(tokens, token{kind: tokenNumber, text: text, pos: start, num: num})
		case c == '\'':
			start := i
			i++
			var literal strings.Builder
			closed := false
			for i < len(source) {
				if source[i] == '\'' {
					if i+1 < len(source) && source[i+1] == '\'' {
						literal.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				literal.WriteByte(source[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("position %d: unterminated string", start)
			}
			tokens = append(tokens, token{kind: tokenString, text: source[start:i], pos: start, str: literal.String()})
		default:
			op, width := scanOp(source[i:])
			if width == 0 {
				return nil, fmt.Errorf("position %d: unexpected character %q", i, string(c))
			}
			tokens = append(tokens, token{kind: tokenOp, text: op, pos: i})
			i += width
		}
	}
	tokens = append(tokens, token{kind: tokenEOF, text: "end of expression", pos: len(source)})
	return tokens, nil
}

func scanOp(s string) (string, int) {
	for _, op := range []string{"==", "!=", "<=", ">=", "&&", "||"} {
		if strings.HasPrefix(s, op) {
			return op, 2
		}
	}
	switch s[0] {
	case '<', '>', '!', '(', ')', '[', ']', '.', ',', '-':
		return string(s[0]), 1
	}
	return "", 0
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Identifiers continue with hyphens so that property names like
// "dry-run" parse without bracket syntax. The language has no binary
// minus, so this is unambiguous.
func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

func isNumberPart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-'
}
