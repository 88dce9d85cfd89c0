package expr

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/reportlens/internal/domain"
)

type node interface {
	eval(env map[string]float64) (float64, error)
}

type numNode float64

func (n numNode) eval(map[string]float64) (float64, error) { return float64(n), nil }

// identNode resolves against the bound values; a declared but unbound identifier is 0.
type identNode string

func (n identNode) eval(env map[string]float64) (float64, error) { return env[string(n)], nil }

type negNode struct{ operand node }

func (n negNode) eval(env map[string]float64) (float64, error) {
	v, err := n.operand.eval(env)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

type binaryNode struct {
	op          tokenKind
	left, right node
}

func (n binaryNode) eval(env map[string]float64) (float64, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(env)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case tokPlus:
		return l + r, nil
	case tokMinus:
		return l - r, nil
	case tokStar:
		return l * r, nil
	case tokSlash:
		if r == 0 {
			return 0, fmt.Errorf("%w: division by zero", domain.ErrEvaluation)
		}
		return l / r, nil
	}
	return 0, fmt.Errorf("%w: unknown operator %s", domain.ErrEvaluation, n.op)
}

// Eval computes the formula with the given identifier values.
func (p *Program) Eval(env map[string]float64) (float64, error) {
	v, err := p.root.eval(env)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: result is not a finite number", domain.ErrEvaluation)
	}
	return v, nil
}
