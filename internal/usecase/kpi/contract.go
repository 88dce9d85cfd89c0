package kpi

import (
	"context"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
)

// Documents loads uploaded reports for ownership and readiness checks.
type Documents interface {
	Get(ctx context.Context, id string) (domdoc.Document, error)
}

// Retriever searches one document namespace.
type Retriever interface {
	Search(ctx context.Context, ns, query string, k int) ([]passage.Passage, error)
}

// Completer returns a full model response.
type Completer interface {
	Complete(ctx context.Context, messages []domain.PromptMessage) (domain.Completion, error)
}
