package kpi

import (
	"fmt"

	domkpi "github.com/kailas-cloud/reportlens/internal/domain/kpi"
)

// Evaluate computes f once per document. A formula that does not compile fails
// every document; an evaluation error only fails its own document.
func Evaluate(f domkpi.Formula, documentIDs []string, values map[string][]domkpi.ComponentValue) domkpi.Result {
	res := domkpi.Result{KPIName: f.KPIName, PerDocument: make(map[string]domkpi.Outcome, len(documentIDs))}

	prog, err := f.Compile()
	if err != nil {
		for _, id := range documentIDs {
			res.PerDocument[id] = domkpi.Failed(fmt.Errorf("compile formula: %w", err))
		}
		return res
	}

	for _, id := range documentIDs {
		v, err := prog.Eval(domkpi.Bind(f, values[id]))
		if err != nil {
			res.PerDocument[id] = domkpi.Failed(err)
			continue
		}
		res.PerDocument[id] = domkpi.Succeeded(v)
	}
	return res
}
