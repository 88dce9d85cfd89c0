package chat

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domchat "github.com/kailas-cloud/reportlens/internal/domain/chat"
	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
	"github.com/kailas-cloud/reportlens/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type fakeDocs map[string]domdoc.Document

func (d fakeDocs) Get(_ context.Context, id string) (domdoc.Document, error) {
	doc, ok := d[id]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func doc(id, owner string, status domdoc.Status) domdoc.Document {
	return domdoc.Reconstruct(id, owner, "key-"+id, id+".pdf", "https://files/"+id, 2, status, time.Now())
}

// fakeMessages keeps messages in insertion order and enforces unique turn keys.
type fakeMessages struct {
	mu        sync.Mutex
	msgs      []domchat.Message
	saveCalls int
	saveErr   error
}

func (f *fakeMessages) Append(_ context.Context, m *domchat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, *m)
	return nil
}

func (f *fakeMessages) SaveReply(_ context.Context, m *domchat.Message) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.saveErr != nil {
		return false, f.saveErr
	}
	for _, existing := range f.msgs {
		if existing.TurnKey != "" && existing.TurnKey == m.TurnKey {
			return false, nil
		}
	}
	f.msgs = append(f.msgs, *m)
	return true, nil
}

func (f *fakeMessages) scoped(userID, scopeKey string) []domchat.Message {
	var out []domchat.Message
	for _, m := range f.msgs {
		if m.UserID == userID && m.ScopeKey == scopeKey {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeMessages) History(_ context.Context, userID, scopeKey string, limit int, cursor string) (domchat.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.scoped(userID, scopeKey)
	var page domchat.Page
	for i := len(all) - 1; i >= 0; i-- {
		if cursor != "" && all[i].ID >= cursor {
			continue
		}
		if len(page.Messages) == limit {
			page.NextCursor = page.Messages[limit-1].ID
			break
		}
		page.Messages = append(page.Messages, all[i])
	}
	return page, nil
}

func (f *fakeMessages) Recent(_ context.Context, userID, scopeKey string, n int) ([]domchat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.scoped(userID, scopeKey)
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func (f *fakeMessages) replies() []domchat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domchat.Message
	for _, m := range f.msgs {
		if !m.IsUserMessage {
			out = append(out, m)
		}
	}
	return out
}

type fakeRetriever struct {
	mu      sync.Mutex
	spaces  map[string][]passage.Passage
	err     error
	queries []string
}

func (r *fakeRetriever) Search(_ context.Context, ns, query string, k int) ([]passage.Passage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, ns+"|"+query)
	if r.err != nil {
		return nil, r.err
	}
	ps := r.spaces[ns]
	if len(ps) > k {
		ps = ps[:k]
	}
	return ps, nil
}

// fakeStreamer replays chunks, then fails with err or ends with io.EOF.
type fakeStreamer struct {
	chunks  []string
	err     error
	block   bool
	prompts [][]domain.PromptMessage
}

func (s *fakeStreamer) Stream(ctx context.Context, msgs []domain.PromptMessage) (domain.TokenStream, error) {
	s.prompts = append(s.prompts, msgs)
	return &fakeTokenStream{ctx: ctx, chunks: s.chunks, err: s.err, block: s.block}, nil
}

type fakeTokenStream struct {
	ctx    context.Context
	chunks []string
	err    error
	block  bool
	closed bool
}

func (s *fakeTokenStream) Recv() (string, error) {
	if len(s.chunks) > 0 {
		c := s.chunks[0]
		s.chunks = s.chunks[1:]
		return c, nil
	}
	if s.block {
		<-s.ctx.Done()
		return "", errors.New("stream reset")
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeTokenStream) Close() error {
	s.closed = true
	return nil
}
