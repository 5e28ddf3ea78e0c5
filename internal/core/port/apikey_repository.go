package port

import (
	"context"
	"time"

	"github.com/arklim/autodoc-access/internal/core/domain"
)

// APIKeyRepository persists hashed credentials.
type APIKeyRepository interface {
	Create(ctx context.Context, key domain.APIKey) error
	GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}
