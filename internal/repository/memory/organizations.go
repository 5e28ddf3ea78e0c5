package memory

import (
	"context"
	"slices"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

// OrganizationRepository implements port.OrganizationRepository in memory.
type OrganizationRepository struct {
	store *Store
}

// Create stores the organization and its owner membership atomically.
func (r *OrganizationRepository) Create(_ context.Context, org domain.Organization, owner domain.Membership) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.organizations {
		if existing.Slug == org.Slug {
			return &repository.ConstraintError{Constraint: repository.ConstraintOrganizationSlug}
		}
	}
	if _, ok := s.users[org.OwnerID]; !ok {
		return repository.ErrNotFound
	}

	s.organizations[org.ID] = org
	s.memberships[org.ID] = map[string]domain.Membership{owner.UserID: owner}
	return nil
}

// GetByID retrieves an organization by identifier.
func (r *OrganizationRepository) GetByID(_ context.Context, id string) (*domain.Organization, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.organizations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &org, nil
}

// AddMember inserts a membership; duplicates are rejected.
func (r *OrganizationRepository) AddMember(_ context.Context, membership domain.Membership) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addMemberLocked(membership)
}

// RemoveMember deletes a membership.
func (r *OrganizationRepository) RemoveMember(_ context.Context, organizationID, userID string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.memberships[organizationID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := members[userID]; !ok {
		return repository.ErrNotFound
	}
	delete(members, userID)
	return nil
}

// ListMembers returns memberships joined with user details, oldest first.
func (r *OrganizationRepository) ListMembers(_ context.Context, organizationID string) ([]domain.Member, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.organizations[organizationID]; !ok {
		return nil, repository.ErrNotFound
	}

	members := make([]domain.Member, 0, len(s.memberships[organizationID]))
	for userID, membership := range s.memberships[organizationID] {
		user := s.users[userID]
		members = append(members, domain.Member{Membership: membership, Email: user.Email, Name: user.Name})
	}
	slices.SortFunc(members, func(a, b domain.Member) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return members, nil
}

func (s *Store) addMemberLocked(membership domain.Membership) error {
	if _, ok := s.organizations[membership.OrganizationID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.users[membership.UserID]; !ok {
		return repository.ErrNotFound
	}
	members := s.memberships[membership.OrganizationID]
	if members == nil {
		members = make(map[string]domain.Membership)
		s.memberships[membership.OrganizationID] = members
	}
	if _, exists := members[membership.UserID]; exists {
		return &repository.ConstraintError{Constraint: repository.ConstraintMembership}
	}
	members[membership.UserID] = membership
	return nil
}

var _ port.OrganizationRepository = (*OrganizationRepository)(nil)
