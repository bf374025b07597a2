package filter

import (
	"strings"

	"github.com/roach88/cqlgate/internal/dberr"
)

type tokenKind int

const (
	tokWord   tokenKind = iota // bare field, keyword or value text
	tokString                  // quoted literal; text holds the unquoted value
	tokParam                   // :name; text holds the name
	tokOp                      // comparison symbol
	tokLParen
	tokRParen
	tokComma
	tokEOF
)

type token struct {
	kind  tokenKind
	text  string
	quote byte // quote character of a tokString
	pos   int  // byte offset of the first character
	end   int  // byte offset after the last character
}

// is reports whether t is a word equal to kw, ignoring case.
func (t token) is(kw string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, kw)
}

const opChars = "=<>!"

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isWordBreak(c byte) bool {
	return isSpace(c) || c == '(' || c == ')' || c == ',' || strings.IndexByte(opChars, c) >= 0
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// tokenize splits filter text into tokens, ending with tokEOF.
func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case isSpace(c):
			i++

		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i, end: i + 1})
			i++

		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i, end: i + 1})
			i++

		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i, end: i + 1})
			i++

		case c == '\'' || c == '"':
			tok, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = tok.end

		case c == ':' && i+1 < len(src) && isIdentStart(src[i+1]):
			j := i + 1
			for j < len(src) && !isWordBreak(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokParam, text: src[i+1 : j], pos: i, end: j})
			i = j

		case strings.IndexByte(opChars, c) >= 0:
			op := ""
			if i+1 < len(src) {
				switch two := src[i : i+2]; two {
				case ">=", "<=", "!=", "<>":
					op = two
				}
			}
			if op == "" {
				if c == '!' {
					return nil, dberr.Compilef("malformed operator at position %d", i).With("position", itoa(i))
				}
				op = string(c)
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i, end: i + len(op)})
			i += len(op)

		default:
			j := i
			for j < len(src) && !isWordBreak(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokWord, text: src[i:j], pos: i, end: j})
			i = j
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src), end: len(src)})
	return toks, nil
}

// lexString reads a quoted literal starting at src[start]. A doubled quote
// character inside the literal stands for one quote.
func lexString(src string, start int) (token, error) {
	q := src[start]
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		if src[i] == q {
			if i+1 < len(src) && src[i+1] == q {
				b.WriteByte(q)
				i += 2
				continue
			}
			return token{kind: tokString, text: b.String(), quote: q, pos: start, end: i + 1}, nil
		}
		b.WriteByte(src[i])
		i++
	}
	return token{}, dberr.Compilef("unterminated string starting at position %d", start).With("position", itoa(start))
}
