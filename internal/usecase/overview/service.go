// Package overview builds a fixed side-by-side benchmark of two reports.
package overview

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/reportlens/internal/domain"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
	"github.com/kailas-cloud/reportlens/internal/logger"
)

// DefaultTopK is how many passages per document back one attribute.
const DefaultTopK = 6

const systemPrompt = "Use the following context to answer the user's question in markdown format."

// Request asks for the benchmark of two documents. Message is optional extra guidance.
type Request struct {
	UserID      string
	DocumentID1 string
	DocumentID2 string
	Message     string
}

// Row is the answer for one attribute. Failed rows carry no answer.
type Row struct {
	Attribute Attribute
	Answer    string
	Failed    bool
}

// Table is the completed benchmark in Attributes order.
type Table struct {
	DocumentIDs []string
	Rows        []Row
}

// Markdown renders the table with one row per attribute.
func (t Table) Markdown() string {
	var b strings.Builder
	b.WriteString("| Attribute | Finding |\n|---|---|\n")
	for _, r := range t.Rows {
		answer := "n/a"
		if !r.Failed {
			answer = cell(r.Answer)
		}
		fmt.Fprintf(&b, "| %s | %s |\n", cell(r.Attribute.Label), answer)
	}
	return b.String()
}

func cell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", "<br>")), " ")
}

// Service answers every attribute with bounded concurrency.
type Service struct {
	docs        Documents
	search      Retriever
	llm         Completer
	topK        int
	concurrency int
}

// New creates an overview service.
func New(docs Documents, search Retriever, llm Completer, topK, concurrency int) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{docs: docs, search: search, llm: llm, topK: topK, concurrency: concurrency}
}

// Compare answers all attributes for both documents. A failing attribute is marked
// failed without affecting the others; only cancellation fails the whole table.
func (s *Service) Compare(ctx context.Context, req Request) (Table, error) {
	if req.DocumentID1 == "" || req.DocumentID2 == "" || req.DocumentID1 == req.DocumentID2 {
		return Table{}, fmt.Errorf("two different document ids are required: %w", domain.ErrInvalidRequest)
	}
	ids := []string{req.DocumentID1, req.DocumentID2}
	for _, id := range ids {
		doc, err := s.docs.Get(ctx, id)
		if err != nil {
			return Table{}, fmt.Errorf("document %s: %w", id, err)
		}
		if !doc.OwnedBy(req.UserID) {
			return Table{}, fmt.Errorf("document %s: %w", id, domain.ErrDocumentNotFound)
		}
		if !doc.Ready() {
			return Table{}, fmt.Errorf("document %s is %s: %w", id, doc.Status(), domain.ErrDocumentNotReady)
		}
	}

	log := logger.FromContext(ctx)
	start := time.Now()
	rows := make([]Row, len(Attributes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, attr := range Attributes {
		g.Go(func() error {
			answer, err := s.answer(gctx, ids, attr, req.Message)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn("Overview attribute failed", zap.String("attribute", attr.Key), zap.Error(err))
				rows[i] = Row{Attribute: attr, Failed: true}
				return nil
			}
			rows[i] = Row{Attribute: attr, Answer: answer}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Table{}, fmt.Errorf("overview: %w", err)
	}

	failed := 0
	for _, r := range rows {
		if r.Failed {
			failed++
		}
	}
	log.Info("Overview built",
		zap.Int("attributes", len(rows)),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)
	return Table{DocumentIDs: ids, Rows: rows}, nil
}

func (s *Service) answer(ctx context.Context, ids []string, attr Attribute, message string) (string, error) {
	query := "The company's " + attr.Label
	if m := strings.TrimSpace(message); m != "" {
		query += ". " + m
	}

	contexts := make([]string, len(ids))
	for i, id := range ids {
		ps, err := s.search.Search(ctx, id, query, s.topK)
		if err != nil {
			return "", fmt.Errorf("retrieve %s: %w", id, err)
		}
		contexts[i] = passage.Join(ps)
	}

	resp, err := s.llm.Complete(ctx, []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: systemPrompt},
		{Role: domain.RoleUser, Content: prompt(attr, contexts, message)},
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", fmt.Errorf("empty answer: %w", domain.ErrLLMProviderError)
	}
	return resp.Text, nil
}

func prompt(attr Attribute, contexts []string, message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Identify the company's %s for each report. Write only the conclusion.\n", attr.Label)
	b.WriteString("Give a response in markdown format. If you don't know the answer, just say you don't know, don't try to make it up.\n\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "CONTEXT %d:\n%s\n\n", i+1, c)
	}
	if m := strings.TrimSpace(message); m != "" {
		fmt.Fprintf(&b, "USER'S INPUT: %s", m)
	}
	return b.String()
}
