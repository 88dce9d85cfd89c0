package users

import (
	"context"

	domuser "github.com/kailas-cloud/reportlens/internal/domain/user"
)

// Repository stores accounts.
type Repository interface {
	Ensure(ctx context.Context, u domuser.User) (domuser.User, bool, error)
	Get(ctx context.Context, id string) (domuser.User, error)
}
