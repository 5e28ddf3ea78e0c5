package memory

import (
	"context"
	"time"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

// InvitationRepository implements port.InvitationRepository in memory.
type InvitationRepository struct {
	store *Store
}

// Create stores a new invitation.
func (r *InvitationRepository) Create(_ context.Context, invitation domain.Invitation) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.organizations[invitation.OrganizationID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.invitations[invitation.ID]; ok {
		return repository.ErrConflict
	}
	s.invitations[invitation.ID] = invitation
	return nil
}

// GetByID retrieves an invitation by identifier.
func (r *InvitationRepository) GetByID(_ context.Context, id string) (*domain.Invitation, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invitations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &inv, nil
}

// Accept flips a pending invitation to accepted and inserts the membership under one lock.
func (r *InvitationRepository) Accept(_ context.Context, id string, membership domain.Membership, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok || !inv.Open(at) {
		return repository.ErrNotFound
	}
	if err := s.addMemberLocked(membership); err != nil {
		return err
	}

	acceptedAt := at
	userID := membership.UserID
	inv.Status = domain.InvitationStatusAccepted
	inv.AcceptedAt = &acceptedAt
	inv.AcceptedUserID = &userID
	s.invitations[id] = inv
	return nil
}

// Reopen reverts an accepted invitation and drops the membership it created.
func (r *InvitationRepository) Reopen(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok || inv.Status != domain.InvitationStatusAccepted {
		return repository.ErrNotFound
	}
	if inv.AcceptedUserID != nil {
		delete(s.memberships[inv.OrganizationID], *inv.AcceptedUserID)
	}

	inv.Status = domain.InvitationStatusPending
	inv.AcceptedAt = nil
	inv.AcceptedUserID = nil
	s.invitations[id] = inv
	return nil
}

var _ port.InvitationRepository = (*InvitationRepository)(nil)
