package document

import (
	"time"

	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
)

// row is the relational shape of a document.
type row struct {
	ID         string    `gorm:"primaryKey;size:36"`
	OwnerID    string    `gorm:"size:128;not null;index:idx_documents_owner_created,priority:1"`
	Key        string    `gorm:"column:upload_key;size:512;not null;uniqueIndex"`
	Name       string    `gorm:"size:512;not null"`
	StorageURL string    `gorm:"size:2048;not null"`
	PageCount  int       `gorm:"not null;default:0"`
	Status     string    `gorm:"size:16;not null;index"`
	CreatedAt  time.Time `gorm:"not null;index:idx_documents_owner_created,priority:2"`
	UpdatedAt  time.Time
}

func (row) TableName() string { return "documents" }

func toRow(d *domdoc.Document) row {
	return row{
		ID:         d.ID(),
		OwnerID:    d.OwnerID(),
		Key:        d.Key(),
		Name:       d.Name(),
		StorageURL: d.StorageURL(),
		PageCount:  d.PageCount(),
		Status:     string(d.Status()),
		CreatedAt:  d.CreatedAt(),
	}
}

func (r *row) toDomain() domdoc.Document {
	return domdoc.Reconstruct(
		r.ID, r.OwnerID, r.Key, r.Name, r.StorageURL,
		r.PageCount, domdoc.Status(r.Status), r.CreatedAt,
	)
}
