// Package kpi compares one financial KPI across two ingested reports.
package kpi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domkpi "github.com/kailas-cloud/reportlens/internal/domain/kpi"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
	"github.com/kailas-cloud/reportlens/internal/logger"
)

// DefaultFormulaTopK is how many passages per document seed grounded resolution.
const DefaultFormulaTopK = 10

// Request asks for one KPI over two documents owned by UserID.
type Request struct {
	UserID      string
	DocumentID1 string
	DocumentID2 string
	KPIName     string
}

// Report is the formula, what was extracted for it and the evaluated KPI.
type Report struct {
	Formula     domkpi.Formula
	DocumentIDs []string
	Values      map[string][]domkpi.ComponentValue
	Result      domkpi.Result
}

// Options tunes resolution.
type Options struct {
	Mode        Mode
	FormulaTopK int
}

// Service orchestrates resolve, extract and evaluate.
type Service struct {
	docs      Documents
	search    Retriever
	resolver  *Resolver
	extractor *Extractor
	opts      Options
}

// New creates a KPI service.
func New(docs Documents, search Retriever, resolver *Resolver, extractor *Extractor, opts Options) *Service {
	if opts.Mode == "" {
		opts.Mode = ModeGrounded
	}
	if opts.FormulaTopK <= 0 {
		opts.FormulaTopK = DefaultFormulaTopK
	}
	return &Service{docs: docs, search: search, resolver: resolver, extractor: extractor, opts: opts}
}

// Compute resolves the KPI, extracts its components from both documents and
// evaluates it per document. Both documents must belong to the caller and be ingested.
func (s *Service) Compute(ctx context.Context, req Request) (Report, error) {
	if strings.TrimSpace(req.KPIName) == "" {
		return Report{}, fmt.Errorf("kpi name is required: %w", domain.ErrInvalidRequest)
	}
	if req.DocumentID1 == "" || req.DocumentID2 == "" {
		return Report{}, fmt.Errorf("two document ids are required: %w", domain.ErrInvalidRequest)
	}
	if req.DocumentID1 == req.DocumentID2 {
		return Report{}, fmt.Errorf("comparison requires two different documents: %w", domain.ErrInvalidRequest)
	}

	ids := []string{req.DocumentID1, req.DocumentID2}
	for _, id := range ids {
		if err := s.checkReady(ctx, req.UserID, id); err != nil {
			return Report{}, err
		}
	}

	log := logger.FromContext(ctx).With(zap.String("kpi", req.KPIName))
	start := time.Now()

	var seeds []string
	if s.opts.Mode == ModeGrounded {
		var err error
		if seeds, err = s.seeds(ctx, ids, req.KPIName); err != nil {
			return Report{}, err
		}
	}

	formula, err := s.resolver.Resolve(ctx, req.KPIName, seeds)
	if err != nil {
		return Report{}, err
	}

	values, err := s.extractor.ExtractAll(ctx, ids, formula.Components)
	if err != nil {
		return Report{}, err
	}

	res := Evaluate(formula, ids, values)
	log.Info("KPI computed",
		zap.String("formula", formula.Expression),
		zap.Int("components", len(formula.Components)),
		zap.Stringer(ids[0], res.PerDocument[ids[0]]),
		zap.Stringer(ids[1], res.PerDocument[ids[1]]),
		zap.Duration("duration", time.Since(start)),
	)

	return Report{Formula: formula, DocumentIDs: ids, Values: values, Result: res}, nil
}

func (s *Service) checkReady(ctx context.Context, userID, id string) error {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("document %s: %w", id, err)
	}
	if !doc.OwnedBy(userID) {
		return fmt.Errorf("document %s: %w", id, domain.ErrDocumentNotFound)
	}
	if !doc.Ready() {
		return fmt.Errorf("document %s is %s: %w", id, doc.Status(), domain.ErrDocumentNotReady)
	}
	return nil
}

func (s *Service) seeds(ctx context.Context, ids []string, kpiName string) ([]string, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		ps, err := s.search.Search(ctx, id, FormulaQuery(kpiName), s.opts.FormulaTopK)
		if err != nil {
			if errors.Is(err, domain.ErrNamespaceNotFound) {
				continue
			}
			return nil, fmt.Errorf("formula seeds for %s: %w", id, err)
		}
		out[i] = passage.Join(ps)
	}
	return out, nil
}
