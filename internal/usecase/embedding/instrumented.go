package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reportlens/internal/domain"
)

// InstrumentedEmbedder wraps Embedder with logging and a dimension guard.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner      domain.Embedder
	provider   string
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. dimensions 0 disables the guard.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	dimensions int, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:      inner,
		provider:   provider,
		model:      model,
		dimensions: dimensions,
		logger:     logger,
	}
}

// Embed delegates to the inner embedder and checks the vector size.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	if err := p.checkDims(result.Embedding); err != nil {
		return domain.EmbeddingResult{}, err
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEmbed delegates a page batch and checks every vector.
func (p *InstrumentedEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()

	result, err := domain.EmbedAll(ctx, p.inner, texts)
	if err != nil {
		p.logger.Error("Batch embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Int("batch_size", len(texts)),
			zap.Error(err),
		)
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: expected %d vectors, got %d: %w",
			len(texts), len(result.Embeddings), domain.ErrEmbeddingProviderError)
	}
	for _, vec := range result.Embeddings {
		if err := p.checkDims(vec); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

func (p *InstrumentedEmbedder) checkDims(vec []float32) error {
	if p.dimensions > 0 && len(vec) != p.dimensions {
		return fmt.Errorf("embedding has %d dimensions, expected %d: %w",
			len(vec), p.dimensions, domain.ErrEmbeddingProviderError)
	}
	return nil
}
