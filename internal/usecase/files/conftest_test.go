package files

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
	"github.com/kailas-cloud/reportlens/internal/domain/plan"
	"github.com/kailas-cloud/reportlens/internal/usecase/ingestion"
)

type fakeDocs struct {
	mu   sync.Mutex
	byID map[string]domdoc.Document
	err  error
}

func newFakeDocs(docs ...domdoc.Document) *fakeDocs {
	f := &fakeDocs{byID: map[string]domdoc.Document{}}
	for _, d := range docs {
		f.byID[d.ID()] = d
	}
	return f
}

func (f *fakeDocs) CreateOrGet(_ context.Context, doc *domdoc.Document) (domdoc.Document, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.byID {
		if d.Key() == doc.Key() {
			return d, false, nil
		}
	}
	f.byID[doc.ID()] = *doc
	return *doc, true, nil
}

func (f *fakeDocs) Get(_ context.Context, id string) (domdoc.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domdoc.Document{}, f.err
	}
	d, ok := f.byID[id]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return d, nil
}

func (f *fakeDocs) GetByKey(_ context.Context, key string) (domdoc.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.byID {
		if d.Key() == key {
			return d, nil
		}
	}
	return domdoc.Document{}, domain.ErrDocumentNotFound
}

func (f *fakeDocs) ListByOwner(_ context.Context, ownerID string) ([]domdoc.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domdoc.Document
	for _, d := range f.byID {
		if d.OwnerID() == ownerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocs) CountCreatedSince(_ context.Context, ownerID string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.byID {
		if d.OwnerID() == ownerID && !d.CreatedAt().Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeDocs) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeMessages struct {
	deleted []string
}

func (m *fakeMessages) DeleteByDocument(_ context.Context, id string) (int64, error) {
	m.deleted = append(m.deleted, id)
	return 3, nil
}

type fakeIndex struct {
	purged []string
	err    error
}

func (x *fakeIndex) Purge(_ context.Context, ns string) error {
	if x.err != nil {
		return x.err
	}
	x.purged = append(x.purged, ns)
	return nil
}

type fakePlans struct{ p plan.Plan }

func (f fakePlans) Plan(context.Context, string) (plan.Plan, error) { return f.p, nil }

type fakeDispatcher struct {
	reqs []ingestion.Request
	err  error
}

func (d *fakeDispatcher) Submit(req ingestion.Request) error {
	if d.err != nil {
		return d.err
	}
	d.reqs = append(d.reqs, req)
	return nil
}

func stored(id, owner, key string, status domdoc.Status, created time.Time) domdoc.Document {
	return domdoc.Reconstruct(id, owner, key, key+".pdf", "https://files/"+key, 0, status, created)
}
