package filter

import (
	"strings"

	"github.com/roach88/cqlgate/internal/dberr"
)

// Parse parses filter text into a Node tree. Precedence, tightest first:
// NOT, AND, OR. Keywords are case-insensitive.
func Parse(src string) (Node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}

	if p.peek().kind == tokEOF {
		return nil, dberr.Compilef("empty filter")
	}

	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	switch t := p.peek(); t.kind {
	case tokEOF:
		return n, nil
	case tokRParen:
		return nil, p.errorf(t, "unbalanced parentheses: unexpected ')'")
	default:
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(offset int) token {
	i := p.pos + offset
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return dberr.Compilef(format, args...).With("position", itoa(t.pos))
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().is("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().is("AND") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	// NOT is a prefix only when a parenthesized argument follows.
	if p.peek().is("NOT") && p.peekAt(1).kind == tokLParen {
		p.next()
		g, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return &Not{Expr: g}, nil
	}
	if p.peek().kind == tokLParen {
		return p.parseGroup()
	}
	return p.parseComparison()
}

func (p *parser) parseGroup() (Node, error) {
	open := p.next()
	if p.peek().kind == tokRParen {
		return nil, p.errorf(p.peek(), "empty parentheses")
	}
	inner, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokRParen {
		if p.peek().kind == tokEOF {
			return nil, p.errorf(open, "unbalanced parentheses: '(' is never closed")
		}
		return nil, p.errorf(p.peek(), "unexpected %q", p.peek().text)
	}
	p.next()
	return &Group{Expr: inner}, nil
}

func (p *parser) parseComparison() (Node, error) {
	ft := p.next()
	var field string
	switch {
	case ft.kind == tokWord:
		field = ft.text
	case ft.kind == tokString && ft.quote == '"':
		field = ft.text
	case ft.kind == tokEOF:
		return nil, p.errorf(ft, "unexpected end of filter")
	default:
		return nil, p.errorf(ft, "invalid or unparsable filter request near %q", ft.text)
	}

	cmp := &Comparison{Field: field, FieldPos: ft.pos}

	op, after := matchOperator(p.toks, p.pos)
	if op == nil && p.peek().is("NOT") {
		op, after = matchOperator(p.toks, p.pos+1)
		cmp.Negate = op != nil
	}
	if op == nil {
		t := p.peek()
		if t.kind == tokEOF {
			return nil, p.errorf(t, "missing operator after field %q", field)
		}
		return nil, p.errorf(t, "malformed operator %q after field %q", t.text, field)
	}
	p.pos = after
	cmp.Op = op

	switch {
	case op.NoValue:
	case op.List:
		values, err := p.parseList(op)
		if err != nil {
			return nil, err
		}
		cmp.Values = values
	default:
		v, err := p.parseValue(func(t token, depth int) bool {
			return depth == 0 && (t.kind == tokRParen || t.is("AND") || t.is("OR"))
		})
		if err != nil {
			return nil, err
		}
		cmp.Values = []Value{v}
	}
	return cmp, nil
}

func (p *parser) parseList(op *Operator) ([]Value, error) {
	if p.peek().kind != tokLParen {
		return nil, p.errorf(p.peek(), "filter value lists must be wrapped in parentheses (%s)", op.Name)
	}
	open := p.next()

	var values []Value
	for {
		v, err := p.parseValue(func(t token, depth int) bool {
			return depth == 0 && (t.kind == tokComma || t.kind == tokRParen)
		})
		if err != nil {
			return nil, err
		}
		values = append(values, v)

		switch t := p.next(); t.kind {
		case tokComma:
			continue
		case tokRParen:
			return values, nil
		default:
			return nil, p.errorf(open, "unbalanced parentheses: value list is never closed")
		}
	}
}

// parseValue consumes tokens up to the first one for which stop returns true
// at nesting depth zero. Parentheses inside the value are consumed balanced,
// so a call such as now() stays with its value.
func (p *parser) parseValue(stop func(t token, depth int) bool) (Value, error) {
	start := p.pos
	depth := 0
	for {
		t := p.peek()
		if t.kind == tokEOF {
			if depth > 0 {
				return Value{}, p.errorf(p.toks[start], "unbalanced parentheses in value")
			}
			break
		}
		if stop(t, depth) {
			break
		}
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		}
		p.next()
	}

	span := p.toks[start:p.pos]
	if len(span) == 0 {
		return Value{}, p.errorf(p.peek(), "missing value")
	}
	return p.spanValue(span)
}

func (p *parser) spanValue(span []token) (Value, error) {
	first, last := span[0], span[len(span)-1]

	if len(span) == 1 {
		switch first.kind {
		case tokString:
			return Value{Kind: ValueQuoted, Text: first.text, Pos: first.pos}, nil
		case tokParam:
			return Value{Kind: ValueParam, Text: first.text, Pos: first.pos}, nil
		case tokComma:
			return Value{}, p.errorf(first, "missing value")
		}
	}

	// A value wrapped whole in parentheses is the value inside them.
	if first.kind == tokLParen && last.kind == tokRParen && closes(span) {
		if len(span) == 2 {
			return Value{}, p.errorf(first, "missing value")
		}
		return p.spanValue(span[1 : len(span)-1])
	}

	// Inside a call such as concat('a', 'b') anything goes; the text is bound
	// whole. At the top level only bare words may follow the first token.
	depth := 0
	for _, t := range span {
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		case tokString, tokParam, tokComma:
			if depth == 0 {
				return Value{}, p.errorf(t, "unparsable value near %q", t.text)
			}
		case tokOp:
			if depth == 0 {
				return Value{}, p.errorf(t, "unexpected operator %q in value; conditions must be joined with AND or OR", t.text)
			}
		}
	}

	text := strings.TrimSpace(p.src[first.pos:last.end])
	return Value{Kind: ValueText, Text: text, Pos: first.pos}, nil
}

// closes reports whether the opening parenthesis of span is closed by its
// last token rather than earlier.
func closes(span []token) bool {
	depth := 0
	for i, t := range span {
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth == 0 && i != len(span)-1 {
				return false
			}
		}
	}
	return depth == 0
}
