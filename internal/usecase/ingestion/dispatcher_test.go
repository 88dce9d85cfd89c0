package ingestion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type ingesterFunc func(ctx context.Context, req Request) (Outcome, error)

func (f ingesterFunc) Ingest(ctx context.Context, req Request) (Outcome, error) { return f(ctx, req) }

func TestDispatcher_RunsJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	svc := ingesterFunc(func(_ context.Context, req Request) (Outcome, error) {
		mu.Lock()
		seen[req.DocumentID] = true
		mu.Unlock()
		return OutcomeSucceeded, nil
	})

	d, err := NewDispatcher(svc, DispatcherConfig{Workers: 2, JobTimeout: time.Second}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if err := d.Submit(Request{DocumentID: id}); err != nil {
			t.Fatalf("Submit %s: %v", id, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 jobs run, got %v", seen)
	}
	if err := d.Submit(Request{DocumentID: "late"}); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("expected ErrDispatcherClosed, got %v", err)
	}
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	var ran atomic.Int32
	svc := ingesterFunc(func(_ context.Context, req Request) (Outcome, error) {
		ran.Add(1)
		if req.DocumentID == "boom" {
			panic("corrupt pdf")
		}
		return OutcomeSucceeded, nil
	})

	d, err := NewDispatcher(svc, DispatcherConfig{Workers: 1}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	_ = d.Submit(Request{DocumentID: "boom"})
	_ = d.Submit(Request{DocumentID: "ok"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if ran.Load() != 2 {
		t.Errorf("worker must survive a panic, ran %d jobs", ran.Load())
	}
}

func TestDispatcher_AppliesJobTimeout(t *testing.T) {
	deadline := make(chan bool, 1)
	svc := ingesterFunc(func(ctx context.Context, _ Request) (Outcome, error) {
		_, ok := ctx.Deadline()
		deadline <- ok
		return OutcomeSucceeded, nil
	})

	d, err := NewDispatcher(svc, DispatcherConfig{Workers: 1, JobTimeout: time.Minute}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	_ = d.Submit(Request{DocumentID: "a"})

	select {
	case ok := <-deadline:
		if !ok {
			t.Error("expected a job deadline")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
	_ = d.Close(context.Background())
}

func TestDispatcher_Backlog(t *testing.T) {
	release := make(chan struct{})
	svc := ingesterFunc(func(_ context.Context, _ Request) (Outcome, error) {
		<-release
		return OutcomeSucceeded, nil
	})

	d, err := NewDispatcher(svc, DispatcherConfig{Workers: 1, Backlog: 1}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Submit(Request{DocumentID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := d.Submit(Request{DocumentID: "b"}); err != nil {
		t.Fatal(err)
	}
	if err := d.Submit(Request{DocumentID: "c"}); !errors.Is(err, ErrDispatcherBusy) {
		t.Errorf("expected ErrDispatcherBusy, got %v", err)
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
