package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

// CreateInvitation stores a pending invitation that expires after input.TTL.
func (p *Provider) CreateInvitation(ctx context.Context, input port.NewInvitation) (domain.Invitation, error) {
	if !domain.InvitableRole(input.Role) {
		return domain.Invitation{}, fmt.Errorf("role %q cannot be invited", input.Role)
	}
	if input.TTL <= 0 {
		return domain.Invitation{}, fmt.Errorf("invitation ttl must be positive")
	}

	now := p.now()
	inv := domain.Invitation{
		ID:             uuid.NewString(),
		OrganizationID: input.OrganizationID,
		Email:          normalizeEmail(input.Email),
		Role:           input.Role,
		InviterID:      input.InviterID,
		Status:         domain.InvitationStatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(input.TTL),
	}

	if err := p.repos.Invitations.Create(ctx, inv); err != nil {
		return domain.Invitation{}, fmt.Errorf("create invitation: %w", err)
	}
	return inv, nil
}

// GetInvitation returns the invitation only while it is still open.
func (p *Provider) GetInvitation(ctx context.Context, id string) (domain.Invitation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Invitation{}, port.ErrInvitationNotFound
	}

	inv, err := p.repos.Invitations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Invitation{}, port.ErrInvitationNotFound
		}
		return domain.Invitation{}, fmt.Errorf("load invitation: %w", err)
	}
	if !inv.Open(p.now()) {
		return domain.Invitation{}, port.ErrInvitationNotFound
	}
	return *inv, nil
}

// AcceptInvitation consumes the invitation for userID and creates the membership.
func (p *Provider) AcceptInvitation(ctx context.Context, invitationID, userID string) (domain.Membership, error) {
	inv, err := p.GetInvitation(ctx, invitationID)
	if err != nil {
		return domain.Membership{}, err
	}

	now := p.now()
	membership := domain.Membership{
		OrganizationID: inv.OrganizationID,
		UserID:         userID,
		Role:           inv.Role,
		CreatedAt:      now,
	}

	if err := p.repos.Invitations.Accept(ctx, invitationID, membership, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Membership{}, port.ErrInvitationNotFound
		}
		return domain.Membership{}, fmt.Errorf("accept invitation: %w", err)
	}
	return membership, nil
}

// ReopenInvitation reverts an acceptance so the invitation can be used again.
func (p *Provider) ReopenInvitation(ctx context.Context, invitationID string) error {
	if err := p.repos.Invitations.Reopen(ctx, invitationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return port.ErrInvitationNotFound
		}
		return fmt.Errorf("reopen invitation: %w", err)
	}
	return nil
}
