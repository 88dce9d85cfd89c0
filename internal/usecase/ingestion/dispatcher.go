package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/reportlens/internal/logger"
)

// defaultCloseTimeout bounds Close when ctx carries no deadline.
const defaultCloseTimeout = 30 * time.Second

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("ingestion dispatcher is closed")

// ErrDispatcherBusy is returned when the backlog is full.
var ErrDispatcherBusy = errors.New("ingestion backlog is full")

// Ingester is the unit of work the dispatcher runs.
type Ingester interface {
	Ingest(ctx context.Context, req Request) (Outcome, error)
}

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Workers    int
	Backlog    int           // jobs waiting for a worker
	JobTimeout time.Duration // per ingestion
}

// Dispatcher runs ingestions in the background on a bounded worker pool.
// The pool holds Workers+Backlog slots and never blocks the caller; the
// semaphore lets only Workers of them ingest at once.
type Dispatcher struct {
	svc    Ingester
	pool   *ants.Pool
	slots  *semaphore.Weighted
	cfg    DispatcherConfig
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher. Panics inside a job are recovered and logged.
func NewDispatcher(svc Ingester, cfg DispatcherConfig, log *zap.Logger) (*Dispatcher, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = cfg.Workers * 16
	}

	pool, err := ants.NewPool(cfg.Workers+cfg.Backlog,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			log.Error("Ingestion worker panic recovered", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create ingestion pool: %w", err)
	}

	return &Dispatcher{
		svc:    svc,
		pool:   pool,
		slots:  semaphore.NewWeighted(int64(cfg.Workers)),
		cfg:    cfg,
		logger: log,
	}, nil
}

// Submit queues req and returns immediately.
func (d *Dispatcher) Submit(req Request) error {
	err := d.pool.Submit(func() { d.run(req) })
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrDispatcherClosed
	case errors.Is(err, ants.ErrPoolOverload):
		return ErrDispatcherBusy
	}
	return fmt.Errorf("schedule ingestion: %w", err)
}

func (d *Dispatcher) run(req Request) {
	// Background never cancels, so Acquire only returns once a slot is free.
	_ = d.slots.Acquire(context.Background(), 1)
	defer d.slots.Release(1)

	ctx := logger.ContextWithLogger(context.Background(), d.logger)
	ctx = logger.With(ctx, logger.DocumentID(req.DocumentID))
	log := logger.FromContext(ctx)
	if d.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.JobTimeout)
		defer cancel()
	}

	outcome, err := d.svc.Ingest(ctx, req)
	if err != nil {
		log.Warn("Ingestion finished with error", zap.String("outcome", string(outcome)), zap.Error(err))
	}
}

// Close stops accepting jobs and waits for queued and running ones until ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	timeout := defaultCloseTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	err := d.pool.ReleaseTimeout(timeout)
	if err == nil || errors.Is(err, ants.ErrPoolClosed) {
		return nil
	}
	return fmt.Errorf("ingestion dispatcher shutdown: %w", err)
}
