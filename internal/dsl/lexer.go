package dsl

import (
	"fmt"
	"strings"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokAnd
	tokOr
	tokNot
	tokEq
	tokNeq
	tokLt
	tokLe
	tokGt
	tokGe
	tokLParen
	tokRParen
	tokDot
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

var keywords = map[string]tokenKind{
	"and": tokAnd,
	"or":  tokOr,
	"not": tokNot,
}

// lex tokenizes expr. It never panics: malformed input surfaces as an error
// returned to the caller (Compile passes it on; verify.Registry keeps such a
// rule as one that never matches) rather than aborting the process.
func lex(expr string) ([]token, error) {
	var toks []token
	i := 0
	n := len(expr)

	for i < n {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen})
			i++
		case c == '.':
			toks = append(toks, token{kind: tokDot})
			i++
		case c == '\'':
			j := i + 1
			var sb strings.Builder
			closed := false
			for j < n {
				if expr[j] == '\\' && j+1 < n {
					sb.WriteByte(expr[j+1])
					j += 2
					continue
				}
				if expr[j] == '\'' {
					closed = true
					j++
					break
				}
				sb.WriteByte(expr[j])
				j++
			}
			if !closed {
				return nil, fmt.Errorf("dsl: unterminated string literal at offset %d", i)
			}
			toks = append(toks, token{kind: tokString, text: sb.String()})
			i = j
		case c == '=':
			if i+1 < n && expr[i+1] == '=' {
				toks = append(toks, token{kind: tokEq})
				i += 2
				continue
			}
			return nil, fmt.Errorf("dsl: unexpected '=' at offset %d (did you mean '==')", i)
		case c == '!':
			if i+1 < n && expr[i+1] == '=' {
				toks = append(toks, token{kind: tokNeq})
				i += 2
				continue
			}
			return nil, fmt.Errorf("dsl: unexpected '!' at offset %d", i)
		case c == '<':
			if i+1 < n && expr[i+1] == '=' {
				toks = append(toks, token{kind: tokLe})
				i += 2
				continue
			}
			toks = append(toks, token{kind: tokLt})
			i++
		case c == '>':
			if i+1 < n && expr[i+1] == '=' {
				toks = append(toks, token{kind: tokGe})
				i += 2
				continue
			}
			toks = append(toks, token{kind: tokGt})
			i++
		case strings.HasPrefix(expr[i:], "≤"):
			toks = append(toks, token{kind: tokLe})
			i += len("≤")
		case strings.HasPrefix(expr[i:], "≥"):
			toks = append(toks, token{kind: tokGe})
			i += len("≥")
		case isDigit(c):
			j := i
			for j < n && (isDigit(expr[j]) || expr[j] == '.') {
				j++
			}
			numStr := expr[i:j]
			var f float64
			if _, err := fmt.Sscanf(numStr, "%g", &f); err != nil {
				return nil, fmt.Errorf("dsl: invalid number literal %q at offset %d", numStr, i)
			}
			toks = append(toks, token{kind: tokNumber, num: f, text: numStr})
			i = j
		case isIdentStart(c):
			j := i
			for j < n && isIdentPart(expr[j]) {
				j++
			}
			word := expr[i:j]
			if kw, ok := keywords[word]; ok {
				toks = append(toks, token{kind: kw, text: word})
			} else {
				toks = append(toks, token{kind: tokIdent, text: word})
			}
			i = j
		default:
			return nil, fmt.Errorf("dsl: unexpected character %q at offset %d", c, i)
		}
	}

	toks = append(toks, token{kind: tokEOF})
	return toks, nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }
