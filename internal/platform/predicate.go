package platform

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Predicate is a parsed platform condition. Parse once per distinct source
// string; the zero value is not usable.
type Predicate struct {
	source string
	expr   expr
}

// Source returns the original predicate source string.
func (p *Predicate) Source() string {
	return p.source
}

// Matches evaluates the predicate against a single triple.
func (p *Predicate) Matches(t Triple) bool {
	return p.expr.eval(t)
}

// ParsePredicate parses a platform predicate. The source is either a full
// cfg(...) expression or a bare triple name, which matches exactly that
// triple. A malformed cfg() expression is an error; the caller attributes it
// to the owning package, because a dropped predicate would corrupt the
// generated build graph.
func ParsePredicate(source string) (*Predicate, error) {
	if !strings.HasPrefix(source, "cfg(") {
		// Bare triple form, e.g. "x86_64-unknown-linux-gnu".
		return &Predicate{source: source, expr: testExpr{key: "target", value: source}}, nil
	}

	p := &predicateParser{input: source, pos: len("cfg(")}
	e, err := p.parseExpr()
	if err != nil {
		return nil, fmt.Errorf("invalid platform predicate %q: %w", source, err)
	}
	if err := p.expect(')'); err != nil {
		return nil, fmt.Errorf("invalid platform predicate %q: %w", source, err)
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("invalid platform predicate %q: trailing input at offset %d", source, p.pos)
	}
	return &Predicate{source: source, expr: e}, nil
}

// expr is a node of the parsed predicate tree.
type expr interface {
	eval(t Triple) bool
}

// allExpr is the conjunction all(...).
type allExpr []expr

func (e allExpr) eval(t Triple) bool {
	for _, sub := range e {
		if !sub.eval(t) {
			return false
		}
	}
	return true
}

// anyExpr is the disjunction any(...).
type anyExpr []expr

func (e anyExpr) eval(t Triple) bool {
	for _, sub := range e {
		if sub.eval(t) {
			return true
		}
	}
	return false
}

// notExpr is the negation not(...).
type notExpr struct{ inner expr }

func (e notExpr) eval(t Triple) bool {
	return !e.inner.eval(t)
}

// flagExpr is a bare attribute flag such as unix or windows. Flags that do
// not name a known family evaluate to false against every triple, matching
// the reference behavior for unrecognized cfg values.
type flagExpr struct{ name string }

func (e flagExpr) eval(t Triple) bool {
	switch e.name {
	case "unix":
		return t.Family == "unix"
	case "windows":
		return t.Family == "windows"
	default:
		return false
	}
}

// testExpr is a key = "value" attribute test. Unknown keys evaluate to false.
type testExpr struct {
	key   string
	value string
}

func (e testExpr) eval(t Triple) bool {
	switch e.key {
	case "target":
		return t.Name == e.value
	case "target_os":
		return t.OS == e.value
	case "target_family":
		return t.Family == e.value
	case "target_arch":
		return t.Arch == e.value
	case "target_env":
		return t.Env == e.value
	case "target_vendor":
		return t.Vendor == e.value
	case "target_pointer_width":
		return strconv.Itoa(t.PointerWidth) == e.value
	case "target_endian":
		return t.Endian == e.value
	default:
		return false
	}
}

// predicateParser is a small recursive-descent parser over the cfg() grammar.
type predicateParser struct {
	input string
	pos   int
}

func (p *predicateParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *predicateParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *predicateParser) expect(ch byte) error {
	p.skipSpace()
	if p.peek() != ch {
		return fmt.Errorf("expected %q at offset %d", string(ch), p.pos)
	}
	p.pos++
	return nil
}

// ident scans an identifier: letters, digits and underscores.
func (p *predicateParser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", fmt.Errorf("expected identifier at offset %d", start)
	}
	return p.input[start:p.pos], nil
}

// stringLit scans a double-quoted string literal. The cfg grammar has no
// escape sequences.
func (p *predicateParser) stringLit() (string, error) {
	if err := p.expect('"'); err != nil {
		return "", err
	}
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != '"' {
		p.pos++
	}
	if p.pos >= len(p.input) {
		return "", fmt.Errorf("unterminated string literal at offset %d", start)
	}
	s := p.input[start:p.pos]
	p.pos++ // closing quote
	return s, nil
}

func (p *predicateParser) parseExpr() (expr, error) {
	name, err := p.ident()
	if err != nil {
		return nil, err
	}

	switch name {
	case "all", "any":
		if err := p.expect('('); err != nil {
			return nil, err
		}
		subs, err := p.parseList()
		if err != nil {
			return nil, err
		}
		if name == "all" {
			return allExpr(subs), nil
		}
		return anyExpr(subs), nil
	case "not":
		if err := p.expect('('); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return notExpr{inner: inner}, nil
	}

	p.skipSpace()
	if p.peek() == '=' {
		p.pos++
		value, err := p.stringLit()
		if err != nil {
			return nil, err
		}
		return testExpr{key: name, value: value}, nil
	}
	return flagExpr{name: name}, nil
}

// parseList parses a comma-separated expression list up to and including the
// closing parenthesis. A trailing comma is allowed, an empty list is not.
func (p *predicateParser) parseList() ([]expr, error) {
	var subs []expr
	for {
		sub, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == ')' {
				p.pos++
				return subs, nil
			}
		case ')':
			p.pos++
			return subs, nil
		default:
			return nil, fmt.Errorf("expected %q or %q at offset %d", ",", ")", p.pos)
		}
	}
}
