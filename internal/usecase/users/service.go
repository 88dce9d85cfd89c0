// Package users syncs authenticated callers into the account store and resolves their plan.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reportlens/internal/domain"
	"github.com/kailas-cloud/reportlens/internal/domain/plan"
	domuser "github.com/kailas-cloud/reportlens/internal/domain/user"
	"github.com/kailas-cloud/reportlens/internal/logger"
)

// Service manages accounts.
type Service struct {
	repo    Repository
	catalog *plan.Catalog
}

// New creates a user service.
func New(repo Repository, catalog *plan.Catalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// Sync makes sure the caller has an account. New accounts get the default plan.
func (s *Service) Sync(ctx context.Context, id, email string) (domuser.User, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(email) == "" {
		return domuser.User{}, fmt.Errorf("caller identity is incomplete: %w", domain.ErrUnauthorized)
	}

	u, created, err := s.repo.Ensure(ctx, domuser.User{ID: id, Email: email, PlanSlug: s.catalog.Default().Slug})
	if err != nil {
		return domuser.User{}, fmt.Errorf("sync user: %w", err)
	}
	if created {
		logger.FromContext(ctx).Info("User created", logger.UserID(id), zap.String("plan", u.PlanSlug))
	}
	return u, nil
}

// Plan returns the caller's plan. Callers without an account get the default plan.
func (s *Service) Plan(ctx context.Context, userID string) (plan.Plan, error) {
	u, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.catalog.Default(), nil
	}
	if err != nil {
		return plan.Plan{}, fmt.Errorf("load user: %w", err)
	}
	return s.catalog.Lookup(u.PlanSlug), nil
}
