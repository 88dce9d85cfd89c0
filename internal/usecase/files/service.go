// Package files registers uploaded reports and manages them for their owner.
package files

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
	"github.com/kailas-cloud/reportlens/internal/domain/plan"
	"github.com/kailas-cloud/reportlens/internal/logger"
	"github.com/kailas-cloud/reportlens/internal/usecase/ingestion"
)

// Upload is the storage collaborator's notification of a completed upload.
type Upload struct {
	UserID string
	Key    string
	Name   string
	URL    string
}

// Service manages uploaded documents.
type Service struct {
	docs       Documents
	messages   Messages
	index      Index
	plans      Plans
	dispatcher Dispatcher
	now        func() time.Time
}

// New creates a files service.
func New(docs Documents, messages Messages, index Index, plans Plans, dispatcher Dispatcher) *Service {
	return &Service{
		docs: docs, messages: messages, index: index, plans: plans, dispatcher: dispatcher,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a PENDING document for an upload and queues its ingestion.
// Repeated notifications for the same key return the existing document; a document
// still PENDING is queued again, the ingestion claim drops duplicates.
func (s *Service) Register(ctx context.Context, up Upload) (domdoc.Document, bool, error) {
	log := logger.FromContext(ctx).With(zap.String("upload_key", up.Key))

	existing, err := s.docs.GetByKey(ctx, up.Key)
	switch {
	case err == nil:
		if !existing.OwnedBy(up.UserID) {
			return domdoc.Document{}, false, fmt.Errorf("upload key belongs to another user: %w", domain.ErrInvalidRequest)
		}
		if existing.Status() == domdoc.StatusPending {
			p, err := s.plans.Plan(ctx, up.UserID)
			if err != nil {
				return domdoc.Document{}, false, err
			}
			if err := s.dispatch(existing, p); err != nil {
				return domdoc.Document{}, false, err
			}
		}
		return existing, false, nil
	case !errors.Is(err, domain.ErrDocumentNotFound):
		return domdoc.Document{}, false, fmt.Errorf("lookup upload: %w", err)
	}

	p, err := s.plans.Plan(ctx, up.UserID)
	if err != nil {
		return domdoc.Document{}, false, err
	}
	used, err := s.docs.CountCreatedSince(ctx, up.UserID, monthStart(s.now()))
	if err != nil {
		return domdoc.Document{}, false, err
	}
	if !p.AllowsUpload(used) {
		return domdoc.Document{}, false, fmt.Errorf("%d of %d uploads used this month on the %s plan: %w",
			used, p.PDFsPerMonth, p.Slug, domain.ErrQuotaExceeded)
	}

	doc, err := domdoc.New(up.UserID, up.Key, up.Name, up.URL)
	if err != nil {
		return domdoc.Document{}, false, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	stored, created, err := s.docs.CreateOrGet(ctx, &doc)
	if err != nil {
		return domdoc.Document{}, false, err
	}
	if !created {
		return stored, false, nil
	}

	log.Info("Upload registered", logger.DocumentID(stored.ID()), zap.String("plan", p.Slug))
	if err := s.dispatch(stored, p); err != nil {
		return domdoc.Document{}, false, err
	}
	return stored, true, nil
}

func (s *Service) dispatch(doc domdoc.Document, p plan.Plan) error {
	if err := s.dispatcher.Submit(ingestion.Request{
		DocumentID: doc.ID(),
		Plan:       p,
		Source:     ingestion.Source{URL: doc.StorageURL()},
	}); err != nil {
		return fmt.Errorf("queue ingestion of %s: %w", doc.ID(), err)
	}
	return nil
}

// List returns the caller's documents, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]domdoc.Document, error) {
	return s.docs.ListByOwner(ctx, userID)
}

// Get returns one of the caller's documents.
func (s *Service) Get(ctx context.Context, userID, id string) (domdoc.Document, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, err
	}
	if !doc.OwnedBy(userID) {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

// GetByKey returns the caller's document for an upload key.
func (s *Service) GetByKey(ctx context.Context, userID, key string) (domdoc.Document, error) {
	doc, err := s.docs.GetByKey(ctx, key)
	if err != nil {
		return domdoc.Document{}, err
	}
	if !doc.OwnedBy(userID) {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

// Status reports ingestion progress. Unknown and foreign documents read as PENDING,
// which keeps an upload poller waiting instead of erroring.
func (s *Service) Status(ctx context.Context, userID, id string) (domdoc.Status, error) {
	doc, err := s.Get(ctx, userID, id)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return domdoc.StatusPending, nil
	}
	if err != nil {
		return "", err
	}
	return doc.Status(), nil
}

// Delete removes the caller's document together with its chat history and namespace.
func (s *Service) Delete(ctx context.Context, userID, id string) (domdoc.Document, error) {
	doc, err := s.Get(ctx, userID, id)
	if err != nil {
		return domdoc.Document{}, err
	}

	removed, err := s.messages.DeleteByDocument(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("delete messages: %w", err)
	}
	if err := s.index.Purge(ctx, id); err != nil {
		return domdoc.Document{}, fmt.Errorf("purge namespace: %w", err)
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return domdoc.Document{}, err
	}

	logger.FromContext(ctx).Info("Document deleted",
		logger.DocumentID(id),
		zap.Int64("messages", removed),
	)
	return doc, nil
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
