package expr

import (
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/reportlens/internal/domain"
)

func mustEval(t *testing.T, src string, declared []string, env map[string]float64) float64 {
	t.Helper()
	p, err := Parse(src, declared)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	v, err := p.Eval(env)
	if err != nil {
		t.Fatalf("Eval(%q): %v", src, err)
	}
	return v
}

func TestEval_Arithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 / 4", 2.5},
		{"10 - 4 - 3", 3},
		{"16 / 4 / 2", 2},
		{"-3 + 5", 2},
		{"--3", 3},
		{"-(2 + 3) * 2", -10},
		{"+4", 4},
		{".5 * 4", 2},
		{"2 * -3", -6},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if got := mustEval(t, tt.src, nil, nil); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEval_Identifiers(t *testing.T) {
	declared := []string{"current_assets", "current_liabilities"}
	env := map[string]float64{"current_assets": 1500000, "current_liabilities": 1000000}

	if got := mustEval(t, "current_assets / current_liabilities", declared, env); got != 1.5 {
		t.Errorf("got %v, want 1.5", got)
	}
}

func TestEval_UnboundIdentifierIsZero(t *testing.T) {
	got := mustEval(t, "a + b", []string{"a", "b"}, map[string]float64{"a": 2})
	if got != 2 {
		t.Errorf("got %v, want 2", got)
	}
}

func TestParse_RejectsUndeclared(t *testing.T) {
	_, err := Parse("total_revenue / total_assets + globalSecret", []string{"total_revenue", "total_assets"})
	if !errors.Is(err, domain.ErrEvaluation) {
		t.Fatalf("expected ErrEvaluation, got %v", err)
	}
}

func TestParse_RejectsCode(t *testing.T) {
	inputs := []string{
		"process.exit(1)",
		"a; b",
		"a = 1",
		"Math.pow(a, 2)",
		"a ** 2",
		"`a`",
		"a[0]",
		"\"a\"",
		"a b",
		"(a",
		"a)",
		"1..2",
		"",
		"*",
	}
	for _, in := range inputs {
		if _, err := Parse(in, []string{"a", "b"}); !errors.Is(err, domain.ErrEvaluation) {
			t.Errorf("Parse(%q) error = %v, want ErrEvaluation", in, err)
		}
	}
}

func TestParse_DepthLimit(t *testing.T) {
	src := ""
	for i := 0; i < MaxDepth+2; i++ {
		src += "("
	}
	src += "1"
	for i := 0; i < MaxDepth+2; i++ {
		src += ")"
	}
	if _, err := Parse(src, nil); !errors.Is(err, domain.ErrEvaluation) {
		t.Fatalf("expected depth error, got %v", err)
	}
}

func TestEval_DivisionByZero(t *testing.T) {
	p, err := Parse("a / b", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = p.Eval(map[string]float64{"a": 1})
	if !errors.Is(err, domain.ErrEvaluation) {
		t.Fatalf("expected ErrEvaluation, got %v", err)
	}
}

func TestEval_NonFinite(t *testing.T) {
	p, _ := Parse("a * a", []string{"a"})
	if _, err := p.Eval(map[string]float64{"a": math.MaxFloat64}); !errors.Is(err, domain.ErrEvaluation) {
		t.Fatalf("expected ErrEvaluation for overflow, got %v", err)
	}
}

func TestProgram_Identifiers(t *testing.T) {
	p, err := Parse("b + a * b", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ids := p.Identifiers()
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Errorf("Identifiers() = %v", ids)
	}
}
