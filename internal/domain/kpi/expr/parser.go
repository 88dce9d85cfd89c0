package expr

import (
	"fmt"

	"github.com/kailas-cloud/reportlens/internal/domain"
)

const (
	// MaxSourceLength bounds accepted formula text.
	MaxSourceLength = 2048
	// MaxDepth bounds parenthesis and unary nesting.
	MaxDepth = 64
)

// Program is a parsed formula bound to a fixed set of declared identifiers.
type Program struct {
	source string
	root   node
	idents []string
}

// Resolve maps an identifier as written to a declared identifier.
// ok is false for identifiers that are not declared.
type Resolve func(name string) (declared string, ok bool)

// Parse compiles src. Identifiers outside declared are rejected.
func Parse(src string, declared []string) (*Program, error) {
	allowed := make(map[string]bool, len(declared))
	for _, d := range declared {
		allowed[d] = true
	}
	return ParseWith(src, func(name string) (string, bool) { return name, allowed[name] })
}

// ParseWith compiles src, resolving every identifier through resolve.
// An identifier resolve does not accept is rejected. Eval binds the resolved names.
func ParseWith(src string, resolve Resolve) (*Program, error) {
	if len(src) > MaxSourceLength {
		return nil, fmt.Errorf("%w: formula too long (max %d)", domain.ErrEvaluation, MaxSourceLength)
	}
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks, resolve: resolve, seen: map[string]bool{}}
	root, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %s at %d", domain.ErrEvaluation, t.kind, t.pos)
	}
	return &Program{source: src, root: root, idents: p.order}, nil
}

// Source returns the formula text as parsed.
func (p *Program) Source() string { return p.source }

// Identifiers returns referenced identifiers in first-use order.
func (p *Program) Identifiers() []string { return append([]string(nil), p.idents...) }

type parser struct {
	toks    []token
	pos     int
	resolve Resolve
	seen    map[string]bool
	order   []string
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// expr := term (('+' | '-') term)*
func (p *parser) parseExpr(depth int) (node, error) {
	left, err := p.parseTerm(depth)
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokPlus && t.kind != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm(depth)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.kind, left: left, right: right}
	}
}

// term := unary (('*' | '/') unary)*
func (p *parser) parseTerm(depth int) (node, error) {
	left, err := p.parseUnary(depth)
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokStar && t.kind != tokSlash {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary(depth)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.kind, left: left, right: right}
	}
}

// unary := ('-' | '+') unary | primary
func (p *parser) parseUnary(depth int) (node, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: formula nested too deeply", domain.ErrEvaluation)
	}
	switch t := p.peek(); t.kind {
	case tokMinus:
		p.next()
		operand, err := p.parseUnary(depth + 1)
		if err != nil {
			return nil, err
		}
		return negNode{operand: operand}, nil
	case tokPlus:
		p.next()
		return p.parseUnary(depth + 1)
	}
	return p.parsePrimary(depth)
}

// primary := number | identifier | '(' expr ')'
func (p *parser) parsePrimary(depth int) (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return numNode(t.num), nil
	case tokIdent:
		name, ok := p.resolve(t.text)
		if !ok {
			return nil, fmt.Errorf("%w: undeclared identifier %q", domain.ErrEvaluation, t.text)
		}
		if !p.seen[name] {
			p.seen[name] = true
			p.order = append(p.order, name)
		}
		return identNode(name), nil
	case tokLParen:
		inner, err := p.parseExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("%w: expected ')' at %d, got %s", domain.ErrEvaluation, closing.pos, closing.kind)
		}
		return inner, nil
	}
	return nil, fmt.Errorf("%w: unexpected %s at %d", domain.ErrEvaluation, t.kind, t.pos)
}
