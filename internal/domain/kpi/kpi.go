// Package kpi models financial KPI formulas and the values extracted for them.
package kpi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/reportlens/internal/domain/kpi/expr"
)

// Component is a named line item referenced by a formula.
type Component struct {
	Name       string   `json:"name"`
	Alternates []string `json:"alternates"`
}

// Names returns the canonical name followed by non-empty alternates.
func (c Component) Names() []string {
	out := make([]string, 0, 1+len(c.Alternates))
	out = append(out, c.Name)
	for _, a := range c.Alternates {
		if strings.TrimSpace(a) != "" {
			out = append(out, a)
		}
	}
	return out
}

// Identifier returns the formula identifier of the component.
func (c Component) Identifier() string { return Identifier(c.Name) }

// Formula is a resolved KPI. Immutable after resolution, never persisted.
type Formula struct {
	KPIName    string      `json:"kpi_name"`
	Expression string      `json:"formula"`
	Components []Component `json:"components"`
}

// Compile normalizes the expression against the component names and parses it.
// Identifiers in camelCase or other spellings of a component name are accepted.
func (f Formula) Compile() (*expr.Program, error) {
	return expr.ParseWith(NormalizeExpression(f.Expression, f.Components), Resolver(f.Components))
}

// ComponentValue is what extraction reported for one component in one document.
// RawValue is the JSON the model produced: a string, a number or null.
type ComponentValue struct {
	ComponentName string          `json:"component_name"`
	RawValue      json.RawMessage `json:"value"`
	ValueType     string          `json:"type"`
	DocumentID    string          `json:"document_id"`
}

// Absent reports whether the model found nothing.
func (v ComponentValue) Absent() bool {
	raw := bytes.TrimSpace(v.RawValue)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// Number returns the coerced numeric value.
func (v ComponentValue) Number() float64 { return Coerce(v.RawValue) }

// AbsentValue is the placeholder for a component nothing was found for.
func AbsentValue(documentID string, c Component) ComponentValue {
	return ComponentValue{ComponentName: c.Name, RawValue: json.RawMessage("null"), DocumentID: documentID}
}

// Outcome is the KPI value for one document, or why it could not be computed.
type Outcome struct {
	Value  float64
	Failed bool
	Reason string
}

// Succeeded wraps a computed value.
func Succeeded(v float64) Outcome { return Outcome{Value: v} }

// Failed wraps an evaluation failure.
func Failed(err error) Outcome { return Outcome{Failed: true, Reason: err.Error()} }

// MarshalJSON renders a number or the string "evaluation_failed".
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Failed {
		return json.Marshal("evaluation_failed")
	}
	return json.Marshal(o.Value)
}

// Result is the evaluated KPI keyed by document id.
type Result struct {
	KPIName     string
	PerDocument map[string]Outcome
}

// String is used in logs.
func (o Outcome) String() string {
	if o.Failed {
		return fmt.Sprintf("evaluation_failed(%s)", o.Reason)
	}
	return fmt.Sprintf("%g", o.Value)
}
