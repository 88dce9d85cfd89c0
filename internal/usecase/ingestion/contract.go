package ingestion

import (
	"context"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
)

// Documents is the status store for uploaded reports.
type Documents interface {
	Transition(ctx context.Context, id string, from, to domdoc.Status, pageCount int) (bool, error)
}

// Fetcher downloads an uploaded file.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Parser splits a PDF into pages.
type Parser interface {
	Parse(ctx context.Context, data []byte) ([]passage.Page, error)
}

// Embedder vectorizes page batches.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Index writes and removes namespaced page vectors.
type Index interface {
	Index(ctx context.Context, ns string, pages []passage.Page) error
	Purge(ctx context.Context, ns string) error
}
