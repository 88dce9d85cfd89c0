package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the ingestion state of an uploaded report.
type Status string

// Ingestion states. PENDING -> PROCESSING -> SUCCESS | FAILED.
const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CanTransition reports whether ingestion may move a document from one status to another.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusSuccess || to == StatusFailed
	default:
		return false
	}
}

// MaxNameLength bounds the stored file name.
const MaxNameLength = 512

// Document is an uploaded report (immutable value object).
// Its ID doubles as the vector namespace.
type Document struct {
	id         string
	ownerID    string
	key        string
	name       string
	storageURL string
	pageCount  int
	status     Status
	createdAt  time.Time
}

// New validates and creates a PENDING document for a completed upload.
func New(ownerID, key, name, storageURL string) (Document, error) {
	if ownerID == "" {
		return Document{}, fmt.Errorf("owner is required")
	}
	if strings.TrimSpace(key) == "" {
		return Document{}, fmt.Errorf("upload key is required")
	}
	if strings.TrimSpace(name) == "" {
		return Document{}, fmt.Errorf("file name is required")
	}
	if len(name) > MaxNameLength {
		return Document{}, fmt.Errorf("file name too long (max %d)", MaxNameLength)
	}
	if storageURL == "" {
		return Document{}, fmt.Errorf("storage url is required")
	}

	return Document{
		id:         uuid.NewString(),
		ownerID:    ownerID,
		key:        key,
		name:       name,
		storageURL: storageURL,
		status:     StatusPending,
		createdAt:  time.Now().UTC(),
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	id, ownerID, key, name, storageURL string,
	pageCount int, status Status, createdAt time.Time,
) Document {
	return Document{
		id: id, ownerID: ownerID, key: key, name: name, storageURL: storageURL,
		pageCount: pageCount, status: status, createdAt: createdAt,
	}
}

// ID returns the document identifier, also its vector namespace.
func (d *Document) ID() string { return d.id }

// OwnerID returns the owning user id.
func (d *Document) OwnerID() string { return d.ownerID }

// Key returns the upload key assigned by object storage.
func (d *Document) Key() string { return d.key }

// Name returns the original file name.
func (d *Document) Name() string { return d.name }

// StorageURL returns where the PDF bytes can be fetched.
func (d *Document) StorageURL() string { return d.storageURL }

// PageCount returns the number of parsed pages (0 until ingestion succeeds).
func (d *Document) PageCount() int { return d.pageCount }

// Status returns the ingestion status.
func (d *Document) Status() Status { return d.status }

// CreatedAt returns the upload registration time.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// OwnedBy reports whether userID owns the document.
func (d *Document) OwnedBy(userID string) bool { return userID != "" && d.ownerID == userID }

// Ready reports whether the document's namespace can be searched.
func (d *Document) Ready() bool { return d.status == StatusSuccess }
