package kpi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domkpi "github.com/kailas-cloud/reportlens/internal/domain/kpi"
	"github.com/kailas-cloud/reportlens/internal/domain/llmjson"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
	"github.com/kailas-cloud/reportlens/internal/logger"
	"github.com/kailas-cloud/reportlens/internal/metrics"
)

// DefaultExtractTopK is how many passages feed one extraction.
const DefaultExtractTopK = 10

const extractorSystemPrompt = "You are an expert in financial analysis. Extract the value accurately. Respond with JSON only."

type extractionPayload struct {
	ComponentName string          `json:"component_name"`
	Value         json.RawMessage `json:"value"`
	Type          string          `json:"type"`
}

// Extractor pulls one component value out of one document.
type Extractor struct {
	search      Retriever
	llm         Completer
	topK        int
	concurrency int
}

// NewExtractor creates an extractor. concurrency bounds ExtractAll fan-out.
func NewExtractor(search Retriever, llm Completer, topK, concurrency int) *Extractor {
	if topK <= 0 {
		topK = DefaultExtractTopK
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Extractor{search: search, llm: llm, topK: topK, concurrency: concurrency}
}

// Extract retrieves passages for c from documentID and asks the model for its value.
// No passages means the value is absent and the model is not called.
func (e *Extractor) Extract(ctx context.Context, documentID string, c domkpi.Component) (domkpi.ComponentValue, error) {
	passages, err := e.search.Search(ctx, documentID, componentQuery(c), e.topK)
	if err != nil {
		return domkpi.ComponentValue{}, fmt.Errorf("retrieve %q: %w", c.Name, err)
	}
	contextText := passage.Join(passages)
	if contextText == "" {
		return domkpi.AbsentValue(documentID, c), nil
	}

	resp, err := e.llm.Complete(ctx, []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: extractorSystemPrompt},
		{Role: domain.RoleUser, Content: extractionPrompt(c, contextText)},
	})
	if err != nil {
		return domkpi.ComponentValue{}, fmt.Errorf("extract %q: %w", c.Name, err)
	}

	var p extractionPayload
	if err := llmjson.Decode(resp.Text, &p); err != nil {
		return domkpi.ComponentValue{}, &domain.ExtractionParseError{DocumentID: documentID, Component: c.Name, Err: err}
	}

	v := domkpi.ComponentValue{
		ComponentName: strings.TrimSpace(p.ComponentName),
		RawValue:      p.Value,
		ValueType:     p.Type,
		DocumentID:    documentID,
	}
	if v.ComponentName == "" {
		v.ComponentName = c.Name
	}
	if len(v.RawValue) == 0 {
		v.RawValue = json.RawMessage("null")
	}
	return v, nil
}

// ExtractAll extracts every component from every document with bounded parallelism.
// Results are keyed by document and ordered like components. A failed cell is logged,
// counted and reported as absent; only cancellation of ctx fails the call.
func (e *Extractor) ExtractAll(
	ctx context.Context, documentIDs []string, components []domkpi.Component,
) (map[string][]domkpi.ComponentValue, error) {
	log := logger.FromContext(ctx)

	cells := make([][]domkpi.ComponentValue, len(documentIDs))
	for i := range cells {
		cells[i] = make([]domkpi.ComponentValue, len(components))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for di, docID := range documentIDs {
		for ci, c := range components {
			g.Go(func() error {
				v, err := e.Extract(gctx, docID, c)
				switch {
				case err != nil:
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					log.Warn("Component extraction failed, treating as absent",
						logger.DocumentID(docID),
						zap.String("component", c.Name),
						zap.Error(err),
					)
					metrics.ExtractionCellsTotal.WithLabelValues("failed").Inc()
					v = domkpi.AbsentValue(docID, c)
				case v.Absent():
					metrics.ExtractionCellsTotal.WithLabelValues("absent").Inc()
				default:
					metrics.ExtractionCellsTotal.WithLabelValues("found").Inc()
				}
				cells[di][ci] = v
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract components: %w", err)
	}

	out := make(map[string][]domkpi.ComponentValue, len(documentIDs))
	for i, docID := range documentIDs {
		out[docID] = cells[i]
	}
	return out, nil
}

func componentQuery(c domkpi.Component) string {
	return "Find information related to the following component in the context provided.\n\nCOMPONENT:\n" +
		strings.Join(c.Names(), " / ")
}

func extractionPrompt(c domkpi.Component, contextText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract the value for the component %q from the following context.\n", c.Name)
	if alts := c.Names()[1:]; len(alts) > 0 {
		fmt.Fprintf(&b, "It may also appear as: %s. Report it under the name you found it under.\n", strings.Join(alts, ", "))
	}
	b.WriteString("If the exact item is missing, give the closest value present in the context. ")
	b.WriteString("Use null for the value if nothing related appears. Never invent a number.\n\n")
	fmt.Fprintf(&b, "CONTEXT:\n%s\n\n", contextText)
	fmt.Fprintf(&b, `Provide the response in the following JSON format:
{
    "component_name": %q,
    "value": "extracted value",
    "type": "data type (e.g., money, percentage, etc.)"
}`, c.Name)
	return b.String()
}
