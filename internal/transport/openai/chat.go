package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/reportlens/internal/domain"
	"github.com/kailas-cloud/reportlens/internal/metrics"
)

// ChatConfig holds the chat model settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration // applies to Complete only
	Limiter     *rate.Limiter // optional, may be shared between models
	Logger      *zap.Logger
}

// ChatModel talks to an OpenAI-compatible chat completions endpoint.
// It implements domain.Completer and domain.Streamer.
type ChatModel struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewLimiter returns a token bucket limiter, or nil when rps is not positive.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// NewChatModel creates a chat model client.
func NewChatModel(cfg *ChatConfig) *ChatModel {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatModel{
		client:      newClient(cfg.APIKey, cfg.BaseURL),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		limiter:     cfg.Limiter,
		logger:      logger,
	}
}

// Model returns the model name.
func (m *ChatModel) Model() string { return m.model }

// Complete implements domain.Completer.
func (m *ChatModel) Complete(ctx context.Context, messages []domain.PromptMessage) (domain.Completion, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	if err := m.wait(ctx); err != nil {
		return domain.Completion{}, err
	}

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(ctx, m.request(messages, false))
	metrics.LLMRequestDuration.WithLabelValues(m.model, "complete").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(m.model, "complete", "error").Inc()
		return domain.Completion{}, parseAPIError(err, "chat", domain.ErrLLMProviderError)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(m.model, "complete", "error").Inc()
		return domain.Completion{}, fmt.Errorf("chat response has no choices: %w", domain.ErrLLMProviderError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(m.model, "complete", "success").Inc()
	m.countTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	return domain.Completion{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Stream implements domain.Streamer. The caller must Close the returned stream.
func (m *ChatModel) Stream(ctx context.Context, messages []domain.PromptMessage) (domain.TokenStream, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	stream, err := m.client.CreateChatCompletionStream(ctx, m.request(messages, true))
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(m.model, "stream", "error").Inc()
		return nil, parseAPIError(err, "chat stream", domain.ErrLLMProviderError)
	}
	metrics.LLMRequestDuration.WithLabelValues(m.model, "stream").Observe(time.Since(start).Seconds())

	return &tokenStream{model: m, stream: stream}, nil
}

func (m *ChatModel) request(messages []domain.PromptMessage, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(msg.Role), Content: msg.Content})
	}
	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    msgs,
		Temperature: m.temperature,
		Stream:      stream,
	}
	if stream {
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	return req
}

func (m *ChatModel) wait(ctx context.Context) error {
	if m.limiter == nil {
		return nil
	}
	start := time.Now()
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	metrics.LLMRateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

func (m *ChatModel) countTokens(prompt, completion int) {
	if prompt > 0 {
		metrics.LLMTokensTotal.WithLabelValues(m.model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		metrics.LLMTokensTotal.WithLabelValues(m.model, "completion").Add(float64(completion))
	}
}

// tokenStream adapts the SDK stream to domain.TokenStream.
// Chunks without content (role headers, the trailing usage frame) are skipped.
type tokenStream struct {
	model     *ChatModel
	stream    *openai.ChatCompletionStream
	closeOnce sync.Once
	done      bool
}

func (s *tokenStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.finish("success")
			return "", io.EOF
		}
		if err != nil {
			s.finish("error")
			return "", parseAPIError(err, "chat stream", domain.ErrLLMProviderError)
		}
		if resp.Usage != nil {
			s.model.countTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if text := resp.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
}

func (s *tokenStream) finish(status string) {
	if s.done {
		return
	}
	s.done = true
	metrics.LLMRequestsTotal.WithLabelValues(s.model.model, "stream", status).Inc()
}

func (s *tokenStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.stream.Close()
	})
	return err
}
