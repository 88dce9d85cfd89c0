package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/reportlens/internal/domain"
	"github.com/kailas-cloud/reportlens/internal/metrics"
)

func newTestChat(url string) *ChatModel {
	return NewChatModel(&ChatConfig{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "test-chat",
		Timeout: 5 * time.Second,
	})
}

func TestChatModel_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Model != "test-chat" || req.Stream {
			t.Errorf("unexpected request: %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"c1","object":"chat.completion","model":"test-chat",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"formula\":\"a/b\"}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":5,"total_tokens":17}
		}`))
	}))
	defer server.Close()

	before := testutil.ToFloat64(metrics.LLMRequestsTotal.WithLabelValues("test-chat", "complete", "success"))

	res, err := newTestChat(server.URL).Complete(context.Background(), []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: "you are a financial analyst"},
		{Role: domain.RoleUser, Content: "Current Ratio"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if res.Text != `{"formula":"a/b"}` {
		t.Errorf("unexpected text %q", res.Text)
	}
	if res.PromptTokens != 12 || res.CompletionTokens != 5 {
		t.Errorf("unexpected usage %+v", res)
	}

	after := testutil.ToFloat64(metrics.LLMRequestsTotal.WithLabelValues("test-chat", "complete", "success"))
	if after-before != 1 {
		t.Errorf("expected success counter +1, got %v", after-before)
	}
}

func TestChatModel_Complete_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := newTestChat(server.URL).Complete(context.Background(), []domain.PromptMessage{
		{Role: domain.RoleUser, Content: "hi"},
	})
	if !errors.Is(err, domain.ErrLLMProviderError) {
		t.Fatalf("expected ErrLLMProviderError, got %v", err)
	}
	if !errors.Is(err, domain.ErrUpstreamTransient) {
		t.Errorf("503 should be transient: %v", err)
	}
}

func writeSSE(w http.ResponseWriter, chunks []string) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, c := range chunks {
		_, _ = fmt.Fprintf(w, "data: %s\n\n", c)
		if flusher != nil {
			flusher.Flush()
		}
	}
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
}

func TestChatModel_Stream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"stream":true`) {
			t.Errorf("expected stream request, got %s", body)
		}
		writeSSE(w, []string{
			`{"id":"s1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
			`{"id":"s1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Revenue "}}]}`,
			`{"id":"s1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"grew 12%."}}]}`,
			`{"id":"s1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":30,"completion_tokens":4,"total_tokens":34}}`,
		})
	}))
	defer server.Close()

	stream, err := newTestChat(server.URL).Stream(context.Background(), []domain.PromptMessage{
		{Role: domain.RoleUser, Content: "How did revenue change?"},
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()

	var sb strings.Builder
	var chunks int
	for {
		text, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		chunks++
		sb.WriteString(text)
	}

	if chunks != 2 {
		t.Errorf("expected 2 content chunks, got %d", chunks)
	}
	if sb.String() != "Revenue grew 12%." {
		t.Errorf("unexpected text %q", sb.String())
	}
	if err := stream.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestChatModel_RateLimiterHonorsContext(t *testing.T) {
	limiter := NewLimiter(0.001, 1)
	limiter.Allow() // drain the only token

	m := NewChatModel(&ChatConfig{Model: "test-chat", Limiter: limiter, BaseURL: "http://127.0.0.1:1"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := m.Complete(ctx, []domain.PromptMessage{{Role: domain.RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected limiter error")
	}
}

func TestNewLimiter(t *testing.T) {
	if NewLimiter(0, 5) != nil {
		t.Error("rps 0 should disable limiting")
	}
	l := NewLimiter(2, 0)
	if l == nil || l.Burst() != 1 {
		t.Errorf("expected burst clamped to 1, got %+v", l)
	}
}
