package port

import (
	"context"
	"time"

	"github.com/arklim/autodoc-access/internal/core/domain"
)

// LLMResponseRepository stores model responses scoped to an organization.
type LLMResponseRepository interface {
	Create(ctx context.Context, response domain.LLMResponse) error
	List(ctx context.Context, organizationID string, limit int) ([]domain.LLMResponse, error)
	GetByID(ctx context.Context, organizationID, id string) (*domain.LLMResponse, error)
	Update(ctx context.Context, organizationID, id string, patch domain.LLMResponsePatch, at time.Time) (*domain.LLMResponse, error)
	Delete(ctx context.Context, organizationID, id string) error
}
