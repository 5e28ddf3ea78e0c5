package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

// UserRepository implements port.UserRepository in memory.
type UserRepository struct {
	store *Store
}

// Create inserts a user, enforcing unique emails and a single system admin under the write lock.
func (r *UserRepository) Create(_ context.Context, user domain.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return &repository.ConstraintError{Constraint: repository.ConstraintUserEmail}
		}
		if user.SystemAdmin() && existing.SystemAdmin() {
			return &repository.ConstraintError{Constraint: repository.ConstraintSingleAdmin}
		}
	}
	if _, ok := s.users[user.ID]; ok {
		return repository.ErrConflict
	}

	s.users[user.ID] = user
	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

// GetByEmail retrieves a user by case-insensitive email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

// List returns users matching the filter, oldest first.
func (r *UserRepository) List(_ context.Context, filter port.UserFilter) ([]domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0)
	for _, user := range s.users {
		if matchesUserFilter(user, filter) {
			users = append(users, user)
		}
	}

	slices.SortFunc(users, func(a, b domain.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	if filter.Limit > 0 && len(users) > filter.Limit {
		users = users[:filter.Limit]
	}
	return users, nil
}

// Delete removes a user together with owned organizations, memberships, keys and sessions.
func (r *UserRepository) Delete(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)

	for orgID, org := range s.organizations {
		if org.OwnerID == id {
			s.deleteOrganizationLocked(orgID)
		}
	}
	for _, members := range s.memberships {
		delete(members, id)
	}
	for invID, inv := range s.invitations {
		if inv.InviterID == id {
			delete(s.invitations, invID)
		}
	}
	for keyID, key := range s.apiKeys {
		if key.UserID == id {
			delete(s.keyByHash, key.KeyHash)
			delete(s.apiKeys, keyID)
		}
	}
	for sessionID, session := range s.sessions {
		if session.UserID == id {
			delete(s.sessions, sessionID)
		}
	}
	return nil
}

func matchesUserFilter(user domain.User, filter port.UserFilter) bool {
	switch filter.Field {
	case "":
		return true
	case port.UserFilterRole:
		return string(user.Role) == filter.Value
	case port.UserFilterID:
		return user.ID == filter.Value
	case port.UserFilterEmail:
		return strings.EqualFold(user.Email, filter.Value)
	}
	return false
}

var _ port.UserRepository = (*UserRepository)(nil)
