package port

import (
	"context"

	"github.com/arklim/autodoc-access/internal/core/domain"
)

// UserRepository exposes persistence behavior for principals.
// Create enforces unique emails and at most one admin.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	Delete(ctx context.Context, id string) error
}
