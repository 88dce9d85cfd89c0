// Package retrieval runs namespaced similarity search with bounded retries.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reportlens/internal/domain"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
	"github.com/kailas-cloud/reportlens/internal/logger"
	"github.com/kailas-cloud/reportlens/internal/metrics"
)

// Policy bounds retries of transient failures. Attempt n waits Backoff*n before retrying.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Service embeds a query and searches one namespace.
type Service struct {
	index  Index
	embed  Embedder
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a retrieval service.
func New(index Index, embed Embedder, policy Policy) *Service {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Service{index: index, embed: embed, policy: policy, sleep: sleepCtx}
}

// Search returns at most k passages of ns most similar to query, best first.
// domain.ErrNamespaceNotFound is returned at once; transient failures are retried
// up to the policy limit.
func (s *Service) Search(ctx context.Context, ns, query string, k int) ([]passage.Passage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidRequest)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive: %w", domain.ErrInvalidRequest)
	}

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		out, err := s.attempt(ctx, ns, query, k)
		switch {
		case err == nil:
			metrics.RetrievalAttemptsTotal.WithLabelValues("ok").Inc()
			return out, nil
		case errors.Is(err, domain.ErrNamespaceNotFound):
			metrics.RetrievalAttemptsTotal.WithLabelValues("not_found").Inc()
			return nil, err
		case !domain.IsTransient(err):
			metrics.RetrievalAttemptsTotal.WithLabelValues("error").Inc()
			return nil, err
		}

		lastErr = err
		if attempt == s.policy.MaxAttempts {
			break
		}
		metrics.RetrievalAttemptsTotal.WithLabelValues("retry").Inc()
		logger.FromContext(ctx).Warn("Retrieval attempt failed, retrying",
			zap.String("namespace", ns),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if err := s.sleep(ctx, s.policy.Backoff*time.Duration(attempt)); err != nil {
			return nil, fmt.Errorf("retrieval interrupted: %w", err)
		}
	}

	metrics.RetrievalAttemptsTotal.WithLabelValues("error").Inc()
	return nil, fmt.Errorf("retrieval failed after %d attempts: %w", s.policy.MaxAttempts, lastErr)
}

func (s *Service) attempt(ctx context.Context, ns, query string, k int) ([]passage.Passage, error) {
	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	out, err := s.index.Search(ctx, ns, emb.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
