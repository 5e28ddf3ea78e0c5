package port

import (
	"context"
	"time"

	"github.com/arklim/autodoc-access/internal/core/domain"
)

// EndpointRepository stores the per-organization endpoint catalog.
type EndpointRepository interface {
	Create(ctx context.Context, endpoint domain.Endpoint) error
	ListByOrganization(ctx context.Context, organizationID string) ([]domain.Endpoint, error)
	UpdateDescription(ctx context.Context, organizationID, id, description string, at time.Time) (*domain.Endpoint, error)
}
