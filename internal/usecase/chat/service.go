// Package chat answers questions about one or two reports and keeps the history.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domchat "github.com/kailas-cloud/reportlens/internal/domain/chat"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
	"github.com/kailas-cloud/reportlens/internal/logger"
	"github.com/kailas-cloud/reportlens/internal/metrics"
)

// Defaults applied by New.
const (
	DefaultHistoryWindow = 6
	DefaultTopK          = 4
	DefaultStreamTimeout = 90 * time.Second
	DefaultPageSize      = 10
	MaxPageSize          = 100
)

// Options tunes prompt assembly and streaming.
type Options struct {
	HistoryWindow int
	TopK          int
	StreamTimeout time.Duration
	PageSize      int
	MaxPageSize   int
}

// Ask is one user question about a scope.
type Ask struct {
	UserID string
	Scope  domchat.Scope
	Text   string
}

// Service runs chat turns.
type Service struct {
	docs     Documents
	messages Messages
	search   Retriever
	llm      Streamer
	opts     Options
}

// New creates a chat service.
func New(docs Documents, messages Messages, search Retriever, llm Streamer, opts Options) *Service {
	if opts.HistoryWindow < 0 {
		opts.HistoryWindow = 0
	} else if opts.HistoryWindow == 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = DefaultStreamTimeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPageSize < opts.PageSize {
		opts.MaxPageSize = max(MaxPageSize, opts.PageSize)
	}
	return &Service{docs: docs, messages: messages, search: search, llm: llm, opts: opts}
}

// Begin records the user message, gathers history and context and returns a turn
// ready to stream. The user message stays recorded even when a later step fails.
func (s *Service) Begin(ctx context.Context, ask Ask) (*Turn, error) {
	if err := s.authorize(ctx, ask.UserID, ask.Scope, true); err != nil {
		return nil, err
	}

	userMsg, err := domchat.NewUserMessage(ask.UserID, ask.Scope, ask.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	if err := s.messages.Append(ctx, &userMsg); err != nil {
		return nil, fmt.Errorf("record user message: %w", err)
	}

	log := logger.FromContext(ctx).With(
		zap.String("scope", ask.Scope.Key()),
		zap.String("user_message_id", userMsg.ID),
	)

	history, err := s.history(ctx, userMsg)
	if err != nil {
		metrics.ChatTurnsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	ids := ask.Scope.DocumentIDs()
	contexts := make([]string, len(ids))
	for i, id := range ids {
		ps, err := s.search.Search(ctx, id, userMsg.Text, s.opts.TopK)
		if err != nil {
			metrics.ChatTurnsTotal.WithLabelValues("failed").Inc()
			log.Warn("Chat retrieval failed", logger.DocumentID(id), zap.Error(err))
			return nil, fmt.Errorf("retrieve context for %s: %w", id, err)
		}
		contexts[i] = passage.Join(ps)
	}

	return &Turn{
		svc:    s,
		scope:  ask.Scope,
		user:   userMsg,
		prompt: buildPrompt(history, contexts, userMsg.Text),
		log:    log,
	}, nil
}

// History returns a newest-first page of the caller's conversation about scope.
func (s *Service) History(
	ctx context.Context, userID string, scope domchat.Scope, limit int, cursor string,
) (domchat.Page, error) {
	if err := s.authorize(ctx, userID, scope, false); err != nil {
		return domchat.Page{}, err
	}
	if limit <= 0 {
		limit = s.opts.PageSize
	}
	limit = min(limit, s.opts.MaxPageSize)

	page, err := s.messages.History(ctx, userID, scope.Key(), limit, cursor)
	if err != nil {
		return domchat.Page{}, fmt.Errorf("load history: %w", err)
	}
	return page, nil
}

func (s *Service) authorize(ctx context.Context, userID string, scope domchat.Scope, requireReady bool) error {
	for _, id := range scope.DocumentIDs() {
		doc, err := s.docs.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("document %s: %w", id, err)
		}
		if !doc.OwnedBy(userID) {
			return fmt.Errorf("document %s: %w", id, domain.ErrDocumentNotFound)
		}
		if requireReady && !doc.Ready() {
			return fmt.Errorf("document %s is %s: %w", id, doc.Status(), domain.ErrDocumentNotReady)
		}
	}
	return nil
}

// history returns up to HistoryWindow messages preceding current, oldest first.
func (s *Service) history(ctx context.Context, current domchat.Message) ([]domchat.Message, error) {
	recent, err := s.messages.Recent(ctx, current.UserID, current.ScopeKey, s.opts.HistoryWindow+1)
	if err != nil {
		return nil, fmt.Errorf("load recent messages: %w", err)
	}
	prior := make([]domchat.Message, 0, len(recent))
	for _, m := range recent {
		if m.ID != current.ID {
			prior = append(prior, m)
		}
	}
	if len(prior) > s.opts.HistoryWindow {
		prior = prior[len(prior)-s.opts.HistoryWindow:]
	}
	return prior, nil
}

const chatSystemPrompt = "Use the following pieces of context (or the previous conversation if needed) to answer the user's question in markdown format."

func buildPrompt(history []domchat.Message, contexts []string, question string) []domain.PromptMessage {
	var b strings.Builder
	b.WriteString("Use the following pieces of context (or the previous conversation if needed) to answer the user's question in markdown format.\n")
	b.WriteString("If you don't know the answer, just say that you don't know, don't try to make up an answer.\n")
	if len(contexts) > 1 {
		b.WriteString("The question is about two reports. Keep their figures apart and say which report each one comes from.\n")
	}

	b.WriteString("\n----------------\n\nPREVIOUS CONVERSATION:\n")
	for _, m := range history {
		if m.IsUserMessage {
			fmt.Fprintf(&b, "User: %s\n", m.Text)
		} else {
			fmt.Fprintf(&b, "Assistant: %s\n", m.Text)
		}
	}

	b.WriteString("\n----------------\n\n")
	if len(contexts) == 1 {
		fmt.Fprintf(&b, "CONTEXT:\n%s\n\n", contexts[0])
	} else {
		for i, c := range contexts {
			fmt.Fprintf(&b, "CONTEXT %d:\n%s\n\n", i+1, c)
		}
	}
	fmt.Fprintf(&b, "USER INPUT: %s", question)

	return []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: chatSystemPrompt},
		{Role: domain.RoleUser, Content: b.String()},
	}
}
