package chat

import (
	"context"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domchat "github.com/kailas-cloud/reportlens/internal/domain/chat"
	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
)

// Documents loads uploaded reports for ownership and readiness checks.
type Documents interface {
	Get(ctx context.Context, id string) (domdoc.Document, error)
}

// Messages is the append-only chat history store.
type Messages interface {
	Append(ctx context.Context, m *domchat.Message) error
	SaveReply(ctx context.Context, m *domchat.Message) (bool, error)
	History(ctx context.Context, userID, scopeKey string, limit int, cursor string) (domchat.Page, error)
	Recent(ctx context.Context, userID, scopeKey string, n int) ([]domchat.Message, error)
}

// Retriever searches one document namespace.
type Retriever interface {
	Search(ctx context.Context, ns, query string, k int) ([]passage.Passage, error)
}

// Streamer opens an incremental model response.
type Streamer interface {
	Stream(ctx context.Context, messages []domain.PromptMessage) (domain.TokenStream, error)
}
