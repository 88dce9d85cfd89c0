package files

import (
	"context"
	"time"

	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
	"github.com/kailas-cloud/reportlens/internal/domain/plan"
	"github.com/kailas-cloud/reportlens/internal/usecase/ingestion"
)

// Documents is the document store.
type Documents interface {
	CreateOrGet(ctx context.Context, doc *domdoc.Document) (domdoc.Document, bool, error)
	Get(ctx context.Context, id string) (domdoc.Document, error)
	GetByKey(ctx context.Context, key string) (domdoc.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domdoc.Document, error)
	CountCreatedSince(ctx context.Context, ownerID string, since time.Time) (int, error)
	Delete(ctx context.Context, id string) error
}

// Messages removes the chat history of a document.
type Messages interface {
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
}

// Index removes a document namespace.
type Index interface {
	Purge(ctx context.Context, ns string) error
}

// Plans resolves the caller's subscription plan.
type Plans interface {
	Plan(ctx context.Context, userID string) (plan.Plan, error)
}

// Dispatcher queues ingestion jobs.
type Dispatcher interface {
	Submit(req ingestion.Request) error
}
