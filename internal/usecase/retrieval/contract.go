package retrieval

import (
	"context"

	"github.com/kailas-cloud/reportlens/internal/domain"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
)

// Index is the namespaced vector search contract.
type Index interface {
	Search(ctx context.Context, ns string, vector []float32, k int) ([]passage.Passage, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
