// Package ingestion turns an uploaded PDF into a searchable namespace.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
	"github.com/kailas-cloud/reportlens/internal/domain/plan"
	"github.com/kailas-cloud/reportlens/internal/logger"
	"github.com/kailas-cloud/reportlens/internal/metrics"
)

// Outcome is the result of one ingestion call.
type Outcome string

// Ingestion outcomes.
const (
	OutcomeSucceeded     Outcome = "success"
	OutcomeFailed        Outcome = "failed"
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
	OutcomeSkipped       Outcome = "skipped"
)

const cleanupTimeout = 15 * time.Second

// ErrPanicked wraps a panic recovered while ingesting a claimed document.
var ErrPanicked = errors.New("ingestion panicked")

// Source locates the file. Bytes wins over URL when both are set.
type Source struct {
	URL   string
	Bytes []byte
}

// Request asks to ingest one document under the owner's plan.
type Request struct {
	DocumentID string
	Plan       plan.Plan
	Source     Source
}

// Service runs ingestion end to end.
type Service struct {
	docs    Documents
	fetcher Fetcher
	parser  Parser
	embed   Embedder
	index   Index
}

// New creates an ingestion service.
func New(docs Documents, fetcher Fetcher, parser Parser, embed Embedder, index Index) *Service {
	return &Service{docs: docs, fetcher: fetcher, parser: parser, embed: embed, index: index}
}

// Ingest claims a PENDING document and indexes its pages. A document in any other
// status is left untouched (OutcomeSkipped). On failure the namespace is purged and
// the document marked FAILED; the returned error carries the cause.
func (s *Service) Ingest(ctx context.Context, req Request) (Outcome, error) {
	log := logger.FromContext(ctx).With(logger.DocumentID(req.DocumentID))
	start := time.Now()

	claimed, err := s.docs.Transition(ctx, req.DocumentID, domdoc.StatusPending, domdoc.StatusProcessing, 0)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("claim document: %w", err)
	}
	if !claimed {
		log.Info("Ingestion skipped, document is not pending")
		metrics.IngestionsTotal.WithLabelValues(string(OutcomeSkipped)).Inc()
		return OutcomeSkipped, nil
	}

	pageCount, err := s.runGuarded(ctx, req)
	if err != nil {
		outcome := OutcomeFailed
		if errors.Is(err, domain.ErrQuotaExceeded) {
			outcome = OutcomeQuotaExceeded
		}
		s.fail(ctx, log, req.DocumentID, err)
		metrics.IngestionsTotal.WithLabelValues(string(outcome)).Inc()
		return outcome, err
	}

	ok, err := s.docs.Transition(ctx, req.DocumentID, domdoc.StatusProcessing, domdoc.StatusSuccess, pageCount)
	if err == nil && !ok {
		// deleted while processing
		err = domain.ErrDocumentNotFound
	}
	if err != nil {
		s.fail(ctx, log, req.DocumentID, err)
		metrics.IngestionsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return OutcomeFailed, fmt.Errorf("mark success: %w", err)
	}

	metrics.IngestionsTotal.WithLabelValues(string(OutcomeSucceeded)).Inc()
	metrics.IngestionDuration.Observe(time.Since(start).Seconds())
	metrics.IngestionPages.Observe(float64(pageCount))
	log.Info("Ingestion completed",
		zap.Int("pages", pageCount),
		zap.Duration("duration", time.Since(start)),
	)
	return OutcomeSucceeded, nil
}

// runGuarded turns a panic while parsing, embedding or indexing into an error,
// so a claimed document always ends SUCCESS or FAILED.
func (s *Service) runGuarded(ctx context.Context, req Request) (pages int, err error) {
	defer func() {
		if p := recover(); p != nil {
			pages, err = 0, fmt.Errorf("%w: %v", ErrPanicked, p)
		}
	}()
	return s.run(ctx, req)
}

func (s *Service) run(ctx context.Context, req Request) (int, error) {
	data := req.Source.Bytes
	if len(data) == 0 {
		if req.Source.URL == "" {
			return 0, fmt.Errorf("no file source: %w", domain.ErrInvalidRequest)
		}
		var err error
		if data, err = s.fetcher.Fetch(ctx, req.Source.URL); err != nil {
			return 0, fmt.Errorf("fetch file: %w", err)
		}
	}

	pages, err := s.parser.Parse(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	if !req.Plan.AllowsPages(len(pages)) {
		return 0, fmt.Errorf("%d pages exceeds the %s plan limit of %d: %w",
			len(pages), req.Plan.Slug, req.Plan.PagesPerPDF, domain.ErrQuotaExceeded)
	}

	withText := make([]passage.Page, 0, len(pages))
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		withText = append(withText, p)
		texts = append(texts, p.Text)
	}

	if len(texts) > 0 {
		res, err := s.embed.BatchEmbed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed pages: %w", err)
		}
		if len(res.Embeddings) != len(withText) {
			return 0, fmt.Errorf("embed pages: expected %d vectors, got %d: %w",
				len(withText), len(res.Embeddings), domain.ErrEmbeddingProviderError)
		}
		for i := range withText {
			withText[i].Vector = res.Embeddings[i]
		}
	}

	if err := s.index.Index(ctx, req.DocumentID, withText); err != nil {
		return 0, fmt.Errorf("index pages: %w", err)
	}
	return len(pages), nil
}

// fail purges whatever was written and marks the document FAILED.
// It runs on a detached context so a timed-out ingestion still cleans up.
func (s *Service) fail(ctx context.Context, log *zap.Logger, id string, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.index.Purge(cctx, id); err != nil {
		log.Error("Failed to purge namespace after failed ingestion", zap.Error(err))
	}
	if _, err := s.docs.Transition(cctx, id, domdoc.StatusProcessing, domdoc.StatusFailed, 0); err != nil {
		log.Error("Failed to mark document failed", zap.Error(err))
	}
	log.Warn("Ingestion failed", zap.Error(cause))
}
