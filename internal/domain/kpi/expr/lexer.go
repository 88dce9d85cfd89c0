// Package expr evaluates arithmetic formulas produced by a language model.
// The grammar is closed: numbers, declared identifiers, + - * /, unary minus and parentheses.
// Nothing in an expression can reach program state beyond the bound identifier values.
package expr

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/reportlens/internal/domain"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokNumber:
		return "number"
	case tokIdent:
		return "identifier"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokStar:
		return "'*'"
	case tokSlash:
		return "'/'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	}
	return "unknown"
}

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// tokenize splits src into tokens, ending with tokEOF.
func tokenize(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || c == '.':
			start := i
			dots := 0
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				if src[i] == '.' {
					dots++
				}
				i++
			}
			text := src[start:i]
			if dots > 1 || text == "." {
				return nil, fmt.Errorf("%w: bad number %q at %d", domain.ErrEvaluation, text, start)
			}
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q at %d", domain.ErrEvaluation, text, start)
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: n, pos: start})
		case isIdentStart(c):
			start := i
			for i < len(src) && (isIdentStart(src[i]) || isDigit(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			kind, ok := operators[c]
			if !ok {
				return nil, fmt.Errorf("%w: unexpected character %q at %d", domain.ErrEvaluation, c, i)
			}
			toks = append(toks, token{kind: kind, text: string(c), pos: i})
			i++
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

var operators = map[byte]tokenKind{
	'+': tokPlus,
	'-': tokMinus,
	'*': tokStar,
	'/': tokSlash,
	'(': tokLParen,
	')': tokRParen,
}
