package port

import (
	"context"
	"time"

	"github.com/arklim/autodoc-access/internal/core/domain"
)

// InvitationRepository persists invitations.
type InvitationRepository interface {
	Create(ctx context.Context, invitation domain.Invitation) error
	GetByID(ctx context.Context, id string) (*domain.Invitation, error)
	// Accept moves a pending, unexpired invitation to accepted and inserts the membership
	// in one step. It returns repository.ErrNotFound when the invitation is not open.
	Accept(ctx context.Context, id string, membership domain.Membership, at time.Time) error
	// Reopen reverts an accepted invitation to pending and removes the membership it created.
	Reopen(ctx context.Context, id string) error
}
