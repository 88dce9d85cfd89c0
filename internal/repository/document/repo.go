package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
)

// Repo persists documents in the relational store.
type Repo struct {
	db *gorm.DB
}

// New creates a document repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates or updates the documents table.
func (r *Repo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&row{})
}

// CreateOrGet inserts doc unless a document with the same upload key exists,
// and returns the stored document. created reports whether doc was inserted.
func (r *Repo) CreateOrGet(ctx context.Context, doc *domdoc.Document) (domdoc.Document, bool, error) {
	rw := toRow(doc)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "upload_key"}}, DoNothing: true}).
		Create(&rw)
	if res.Error != nil {
		return domdoc.Document{}, false, fmt.Errorf("insert document: %w", res.Error)
	}

	stored, err := r.GetByKey(ctx, doc.Key())
	if err != nil {
		return domdoc.Document{}, false, err
	}
	return stored, res.RowsAffected == 1, nil
}

// Get returns a document by id.
func (r *Repo) Get(ctx context.Context, id string) (domdoc.Document, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByKey returns a document by its upload key.
func (r *Repo) GetByKey(ctx context.Context, key string) (domdoc.Document, error) {
	return r.first(ctx, "upload_key = ?", key)
}

func (r *Repo) first(ctx context.Context, query string, arg any) (domdoc.Document, error) {
	var rw row
	if err := r.db.WithContext(ctx).Where(query, arg).First(&rw).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domdoc.Document{}, domain.ErrDocumentNotFound
		}
		return domdoc.Document{}, fmt.Errorf("get document: %w", err)
	}
	return rw.toDomain(), nil
}

// ListByOwner returns the owner's documents, newest first.
func (r *Repo) ListByOwner(ctx context.Context, ownerID string) ([]domdoc.Document, error) {
	var rows []row
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	out := make([]domdoc.Document, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// CountCreatedSince counts the owner's uploads created at or after since.
func (r *Repo) CountCreatedSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&row{}).
		Where("owner_id = ? AND created_at >= ?", ownerID, since).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return int(n), nil
}

// Transition moves a document from one status to another with a single conditional
// UPDATE. It reports false, without error, when the document is not in status from.
// pageCount is stored when positive.
func (r *Repo) Transition(ctx context.Context, id string, from, to domdoc.Status, pageCount int) (bool, error) {
	if !domdoc.CanTransition(from, to) {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, domain.ErrInvalidRequest)
	}

	updates := map[string]any{"status": string(to)}
	if pageCount > 0 {
		updates["page_count"] = pageCount
	}

	res := r.db.WithContext(ctx).Model(&row{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update document status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Delete removes a document row.
func (r *Repo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&row{})
	if res.Error != nil {
		return fmt.Errorf("delete document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
