package port

import (
	"context"

	"github.com/arklim/autodoc-access/internal/core/domain"
)

// OrganizationRepository persists organizations and their memberships.
type OrganizationRepository interface {
	// Create stores the organization together with its owner membership.
	Create(ctx context.Context, org domain.Organization, owner domain.Membership) error
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	AddMember(ctx context.Context, membership domain.Membership) error
	RemoveMember(ctx context.Context, organizationID, userID string) error
	ListMembers(ctx context.Context, organizationID string) ([]domain.Member, error)
}
