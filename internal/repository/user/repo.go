// Package user persists accounts synced from the auth provider.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domuser "github.com/kailas-cloud/reportlens/internal/domain/user"
)

type row struct {
	ID        string    `gorm:"primaryKey;size:128"`
	Email     string    `gorm:"size:320"`
	PlanSlug  string    `gorm:"size:64;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (row) TableName() string { return "users" }

func (r *row) toDomain() domuser.User {
	return domuser.User{ID: r.ID, Email: r.Email, PlanSlug: r.PlanSlug, CreatedAt: r.CreatedAt}
}

// Repo stores users.
type Repo struct {
	db *gorm.DB
}

// New creates a user repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates or updates the users table.
func (r *Repo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&row{})
}

// Ensure inserts u unless the id is already known and returns the stored user.
// An existing user keeps its plan.
func (r *Repo) Ensure(ctx context.Context, u domuser.User) (domuser.User, bool, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	rw := row{ID: u.ID, Email: u.Email, PlanSlug: u.PlanSlug, CreatedAt: u.CreatedAt}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&rw)
	if res.Error != nil {
		return domuser.User{}, false, fmt.Errorf("insert user: %w", res.Error)
	}

	stored, err := r.Get(ctx, u.ID)
	if err != nil {
		return domuser.User{}, false, err
	}
	return stored, res.RowsAffected == 1, nil
}

// Get returns a user by id.
func (r *Repo) Get(ctx context.Context, id string) (domuser.User, error) {
	var rw row
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rw).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domuser.User{}, domain.ErrNotFound
		}
		return domuser.User{}, fmt.Errorf("get user: %w", err)
	}
	return rw.toDomain(), nil
}
