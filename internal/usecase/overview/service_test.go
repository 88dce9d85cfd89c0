package overview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
)

type fakeDocs map[string]domdoc.Document

func (d fakeDocs) Get(_ context.Context, id string) (domdoc.Document, error) {
	doc, ok := d[id]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

type fakeRetriever struct{}

func (fakeRetriever) Search(_ context.Context, ns, query string, _ int) ([]passage.Passage, error) {
	return []passage.Passage{{Page: 1, Text: ns + " says: " + query}}, nil
}

// fakeLLM answers with the attribute line of the prompt, failing attributes listed in fail.
type fakeLLM struct {
	fail     map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	prompts  []string
}

func (l *fakeLLM) Complete(_ context.Context, msgs []domain.PromptMessage) (domain.Completion, error) {
	n := l.inFlight.Add(1)
	defer l.inFlight.Add(-1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)

	prompt := msgs[len(msgs)-1].Content
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	l.mu.Unlock()

	first, _, _ := strings.Cut(prompt, "\n")
	for label := range l.fail {
		if strings.Contains(first, label) {
			return domain.Completion{}, domain.ErrLLMProviderError
		}
	}
	return domain.Completion{Text: "Answer | " + first}, nil
}

func ready(id, owner string) domdoc.Document {
	return domdoc.Reconstruct(id, owner, "k-"+id, id+".pdf", "https://files/"+id, 1, domdoc.StatusSuccess, time.Now())
}

func docs() fakeDocs {
	return fakeDocs{
		"doc-a": ready("doc-a", "u1"),
		"doc-b": ready("doc-b", "u1"),
		"doc-x": ready("doc-x", "u2"),
	}
}

func TestCompare_AllAttributesInOrder(t *testing.T) {
	llm := &fakeLLM{fail: map[string]bool{"Quick Ratio": true}}
	svc := New(docs(), fakeRetriever{}, llm, 4, 3)

	table, err := svc.Compare(context.Background(), Request{UserID: "u1", DocumentID1: "doc-a", DocumentID2: "doc-b"})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(table.Rows) != 13 {
		t.Fatalf("rows = %d, want 13", len(table.Rows))
	}
	for i, r := range table.Rows {
		if r.Attribute != Attributes[i] {
			t.Errorf("row %d is %s, want %s", i, r.Attribute.Key, Attributes[i].Key)
		}
		if r.Attribute.Key == "quick_ratio" {
			if !r.Failed {
				t.Error("quick_ratio should be marked failed")
			}
			continue
		}
		if r.Failed || !strings.Contains(r.Answer, r.Attribute.Label) {
			t.Errorf("row %s = %+v", r.Attribute.Key, r)
		}
	}
	if p := llm.peak.Load(); p > 3 {
		t.Errorf("peak concurrency %d exceeds limit 3", p)
	}

	md := table.Markdown()
	if !strings.Contains(md, "| Quick Ratio | n/a |") {
		t.Errorf("failed row not rendered:\n%s", md)
	}
	if !strings.Contains(md, `Answer \| Identify`) {
		t.Errorf("pipes inside answers must be escaped:\n%s", md)
	}
}

func TestCompare_PromptCarriesBothContexts(t *testing.T) {
	llm := &fakeLLM{}
	svc := New(docs(), fakeRetriever{}, llm, 4, 1)

	if _, err := svc.Compare(context.Background(), Request{UserID: "u1", DocumentID1: "doc-a", DocumentID2: "doc-b", Message: "focus on 2023"}); err != nil {
		t.Fatal(err)
	}
	p := llm.prompts[0]
	if !strings.Contains(p, "CONTEXT 1:\ndoc-a says") || !strings.Contains(p, "CONTEXT 2:\ndoc-b says") {
		t.Errorf("prompt:\n%s", p)
	}
	if !strings.Contains(p, "USER'S INPUT: focus on 2023") {
		t.Error("user guidance missing")
	}
}

func TestCompare_Guards(t *testing.T) {
	svc := New(docs(), fakeRetriever{}, &fakeLLM{}, 4, 2)
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"same document", Request{UserID: "u1", DocumentID1: "doc-a", DocumentID2: "doc-a"}, domain.ErrInvalidRequest},
		{"not owned", Request{UserID: "u1", DocumentID1: "doc-a", DocumentID2: "doc-x"}, domain.ErrDocumentNotFound},
		{"unknown", Request{UserID: "u1", DocumentID1: "nope", DocumentID2: "doc-a"}, domain.ErrDocumentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Compare(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
