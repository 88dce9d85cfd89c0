package files

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
	"github.com/kailas-cloud/reportlens/internal/domain/plan"
	"github.com/kailas-cloud/reportlens/internal/usecase/ingestion"
)

var (
	freePlan = plan.Plan{Slug: "free", Name: "Free", PDFsPerMonth: 2, PagesPerPDF: 5}
	now      = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	docs     *fakeDocs
	messages *fakeMessages
	index    *fakeIndex
	disp     *fakeDispatcher
	svc      *Service
}

func newFixture(docs ...domdoc.Document) *fixture {
	f := &fixture{docs: newFakeDocs(docs...), messages: &fakeMessages{}, index: &fakeIndex{}, disp: &fakeDispatcher{}}
	f.svc = New(f.docs, f.messages, f.index, fakePlans{p: freePlan}, f.disp)
	f.svc.now = func() time.Time { return now }
	return f
}

func TestRegister_CreatesAndDispatches(t *testing.T) {
	f := newFixture()
	doc, created, err := f.svc.Register(context.Background(), Upload{UserID: "u1", Key: "k1", Name: "annual-2025.pdf", URL: "https://files/k1"})
	if err != nil || !created {
		t.Fatalf("Register: created=%v err=%v", created, err)
	}
	if doc.Status() != domdoc.StatusPending || doc.OwnerID() != "u1" {
		t.Errorf("doc = %+v", doc)
	}
	if len(f.disp.reqs) != 1 {
		t.Fatalf("dispatched %d jobs", len(f.disp.reqs))
	}
	req := f.disp.reqs[0]
	if req.DocumentID != doc.ID() || req.Source.URL != "https://files/k1" || req.Plan.Slug != "free" {
		t.Errorf("request = %+v", req)
	}
}

func TestRegister_IdempotentByKey(t *testing.T) {
	done := stored("d-done", "u1", "k-done", domdoc.StatusSuccess, now)
	pending := stored("d-pend", "u1", "k-pend", domdoc.StatusPending, now)
	f := newFixture(done, pending)
	ctx := context.Background()

	doc, created, err := f.svc.Register(ctx, Upload{UserID: "u1", Key: "k-done", Name: "x.pdf", URL: "https://files/x"})
	if err != nil || created || doc.ID() != "d-done" {
		t.Fatalf("repeat for finished doc: id=%s created=%v err=%v", doc.ID(), created, err)
	}
	if len(f.disp.reqs) != 0 {
		t.Error("finished document must not be queued again")
	}

	if _, _, err := f.svc.Register(ctx, Upload{UserID: "u1", Key: "k-pend", Name: "x.pdf", URL: "https://files/x"}); err != nil {
		t.Fatal(err)
	}
	if len(f.disp.reqs) != 1 || f.disp.reqs[0].DocumentID != "d-pend" {
		t.Errorf("pending document should be queued again, got %+v", f.disp.reqs)
	}

	if _, _, err := f.svc.Register(ctx, Upload{UserID: "u2", Key: "k-done", Name: "x.pdf", URL: "https://files/x"}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("foreign key: got %v", err)
	}
}

func TestRegister_MonthlyQuota(t *testing.T) {
	f := newFixture(
		stored("d1", "u1", "k1", domdoc.StatusSuccess, now.AddDate(0, 0, -3)),
		stored("d2", "u1", "k2", domdoc.StatusSuccess, now.AddDate(0, 0, -10)),
		stored("d0", "u1", "k0", domdoc.StatusSuccess, now.AddDate(0, -1, 0)),
	)
	_, _, err := f.svc.Register(context.Background(), Upload{UserID: "u1", Key: "k3", Name: "c.pdf", URL: "https://files/k3"})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if len(f.disp.reqs) != 0 {
		t.Error("nothing may be queued over quota")
	}

	// last month's upload does not count for another user's fresh month
	if _, created, err := f.svc.Register(context.Background(), Upload{UserID: "u2", Key: "k4", Name: "d.pdf", URL: "https://files/k4"}); err != nil || !created {
		t.Fatalf("u2: created=%v err=%v", created, err)
	}
}

func TestRegister_Invalid(t *testing.T) {
	f := newFixture()
	if _, _, err := f.svc.Register(context.Background(), Upload{UserID: "u1", Key: "k1", URL: "https://files/k1"}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("missing name: got %v", err)
	}
}

func TestRegister_DispatcherBusy(t *testing.T) {
	f := newFixture()
	f.disp.err = ingestion.ErrDispatcherBusy
	_, _, err := f.svc.Register(context.Background(), Upload{UserID: "u1", Key: "k1", Name: "a.pdf", URL: "https://files/k1"})
	if !errors.Is(err, ingestion.ErrDispatcherBusy) {
		t.Fatalf("expected ErrDispatcherBusy, got %v", err)
	}

	// the document exists and a retried notification queues it
	f.disp.err = nil
	if _, created, err := f.svc.Register(context.Background(), Upload{UserID: "u1", Key: "k1", Name: "a.pdf", URL: "https://files/k1"}); err != nil || created {
		t.Fatalf("retry: created=%v err=%v", created, err)
	}
	if len(f.disp.reqs) != 1 {
		t.Errorf("retry dispatched %d jobs", len(f.disp.reqs))
	}
}

func TestGetAndStatus_Ownership(t *testing.T) {
	f := newFixture(
		stored("d1", "u1", "k1", domdoc.StatusProcessing, now),
		stored("d2", "u2", "k2", domdoc.StatusSuccess, now),
	)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, "u1", "d2"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("Get foreign: %v", err)
	}
	if _, err := f.svc.GetByKey(ctx, "u1", "k2"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("GetByKey foreign: %v", err)
	}
	if d, err := f.svc.GetByKey(ctx, "u1", "k1"); err != nil || d.ID() != "d1" {
		t.Errorf("GetByKey own: %v", err)
	}

	tests := map[string]domdoc.Status{"d1": domdoc.StatusProcessing, "d2": domdoc.StatusPending, "missing": domdoc.StatusPending}
	for id, want := range tests {
		got, err := f.svc.Status(ctx, "u1", id)
		if err != nil || got != want {
			t.Errorf("Status(%s) = %s, %v; want %s", id, got, err, want)
		}
	}

	f.docs.err = errors.New("db down")
	if _, err := f.svc.Status(ctx, "u1", "d1"); err == nil {
		t.Error("storage errors must surface")
	}
}

func TestDelete_Cascades(t *testing.T) {
	f := newFixture(
		stored("d1", "u1", "k1", domdoc.StatusSuccess, now),
		stored("d2", "u2", "k2", domdoc.StatusSuccess, now),
	)
	ctx := context.Background()

	if _, err := f.svc.Delete(ctx, "u1", "d2"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("foreign delete: %v", err)
	}
	if len(f.messages.deleted)+len(f.index.purged) != 0 {
		t.Fatal("foreign delete must not touch anything")
	}

	doc, err := f.svc.Delete(ctx, "u1", "d1")
	if err != nil || doc.ID() != "d1" {
		t.Fatalf("Delete: %v", err)
	}
	if len(f.messages.deleted) != 1 || len(f.index.purged) != 1 {
		t.Errorf("messages=%v purged=%v", f.messages.deleted, f.index.purged)
	}
	if _, err := f.docs.Get(ctx, "d1"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Error("row must be gone")
	}
}

func TestList(t *testing.T) {
	f := newFixture(
		stored("d1", "u1", "k1", domdoc.StatusSuccess, now),
		stored("d2", "u2", "k2", domdoc.StatusSuccess, now),
	)
	docs, err := f.svc.List(context.Background(), "u1")
	if err != nil || len(docs) != 1 || docs[0].ID() != "d1" {
		t.Errorf("List = %v, %v", docs, err)
	}
}

func TestMonthStart(t *testing.T) {
	got := monthStart(time.Date(2026, 12, 31, 23, 59, 0, 0, time.FixedZone("x", -5*3600)))
	if want := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("monthStart = %s, want %s", got, want)
	}
}
