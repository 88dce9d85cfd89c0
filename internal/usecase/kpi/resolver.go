package kpi

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domkpi "github.com/kailas-cloud/reportlens/internal/domain/kpi"
	"github.com/kailas-cloud/reportlens/internal/domain/llmjson"
)

// Mode selects where the resolver takes the formula from.
type Mode string

// Resolution modes.
const (
	// ModeGrounded seeds the prompt with passages retrieved from both reports.
	ModeGrounded Mode = "grounded"
	// ModeKnowledge relies on the model's own finance knowledge.
	ModeKnowledge Mode = "knowledge"
)

// ParseMode validates a configured mode. Empty means grounded.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeGrounded:
		return ModeGrounded, nil
	case ModeKnowledge:
		return ModeKnowledge, nil
	}
	return "", fmt.Errorf("unknown kpi resolution mode %q", s)
}

const resolverSystemPrompt = "You are an expert in financial analysis. Identify the formula and components accurately. Respond with JSON only."

type formulaEnvelope struct {
	Formula *formulaPayload `json:"formula" validate:"required"`
}

type formulaPayload struct {
	KPIName    string             `json:"kpi_name" validate:"required"`
	FormulaJS  string             `json:"formula_js" validate:"required"`
	Components []componentPayload `json:"components" validate:"required,min=1,dive"`
}

type componentPayload struct {
	Name       string   `json:"name" validate:"required"`
	Alternates []string `json:"alternates" validate:"omitempty,dive,required"`
}

// Resolver asks the model for a KPI formula and its components.
type Resolver struct {
	llm Completer
}

// NewResolver creates a resolver.
func NewResolver(llm Completer) *Resolver {
	return &Resolver{llm: llm}
}

// Resolve returns the formula for kpiName. Seeds, when given, are labelled
// CONTEXT 1, CONTEXT 2 and so on. Output that does not match the expected shape
// fails with a SchemaValidationError; there is no retry here.
func (r *Resolver) Resolve(ctx context.Context, kpiName string, seeds []string) (domkpi.Formula, error) {
	kpiName = strings.TrimSpace(kpiName)
	if kpiName == "" {
		return domkpi.Formula{}, fmt.Errorf("kpi name is required: %w", domain.ErrInvalidRequest)
	}

	resp, err := r.llm.Complete(ctx, []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: resolverSystemPrompt},
		{Role: domain.RoleUser, Content: formulaPrompt(kpiName, seeds)},
	})
	if err != nil {
		return domkpi.Formula{}, fmt.Errorf("resolve formula: %w", err)
	}

	var env formulaEnvelope
	if err := llmjson.Decode(resp.Text, &env); err != nil {
		return domkpi.Formula{}, domain.NewSchemaValidation("formula response: %v", err)
	}
	if err := llmjson.Validate(env); err != nil {
		return domkpi.Formula{}, domain.NewSchemaValidation("formula response: %v", err)
	}

	f := domkpi.Formula{
		KPIName:    env.Formula.KPIName,
		Expression: env.Formula.FormulaJS,
		Components: make([]domkpi.Component, len(env.Formula.Components)),
	}
	for i, c := range env.Formula.Components {
		f.Components[i] = domkpi.Component{Name: strings.TrimSpace(c.Name), Alternates: c.Alternates}
	}
	return f, nil
}

func formulaPrompt(kpiName string, seeds []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Identify the formula for the KPI %q and its components. ", kpiName)
	b.WriteString("Write the formula as plain arithmetic (+, -, *, /, parentheses) over the component names. ")
	b.WriteString("Keep a line item that has several common names as one component and list the other names as alternates.\n\n")
	for i, seed := range seeds {
		fmt.Fprintf(&b, "CONTEXT %d:\n%s\n\n", i+1, seed)
	}
	fmt.Fprintf(&b, `Provide the response in the following JSON format:
{
    "formula": {
        "kpi_name": %q,
        "formula_js": "total revenue / total assets",
        "components": [
            {"name": "total revenue", "alternates": ["revenue", "net sales"]},
            {"name": "total assets", "alternates": []}
        ]
    }
}`, kpiName)
	return b.String()
}

// FormulaQuery is the retrieval query used to seed grounded resolution.
func FormulaQuery(kpiName string) string {
	return fmt.Sprintf("Find the exact formula for the KPI %q.", kpiName)
}
