package memory

import (
	"context"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

// SessionRepository implements port.SessionRepository in memory.
type SessionRepository struct {
	store *Store
}

// Create stores a session. The plaintext token is never retained.
func (r *SessionRepository) Create(_ context.Context, session domain.Session) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[session.UserID]; !ok {
		return repository.ErrNotFound
	}
	session.Token = ""
	s.sessions[session.ID] = session
	return nil
}

// GetByID retrieves a session by identifier.
func (r *SessionRepository) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
