package memory

import (
	"context"
	"time"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

// APIKeyRepository implements port.APIKeyRepository in memory.
type APIKeyRepository struct {
	store *Store
}

// Create stores a hashed credential.
func (r *APIKeyRepository) Create(_ context.Context, key domain.APIKey) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[key.UserID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.keyByHash[key.KeyHash]; ok {
		return repository.ErrConflict
	}
	s.apiKeys[key.ID] = cloneKey(key)
	s.keyByHash[key.KeyHash] = key.ID
	return nil
}

// GetByHash looks a credential up by the hash of its secret.
func (r *APIKeyRepository) GetByHash(_ context.Context, keyHash string) (*domain.APIKey, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keyByHash[keyHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	key := cloneKey(s.apiKeys[id])
	return &key, nil
}

// Revoke marks a credential as revoked.
func (r *APIKeyRepository) Revoke(_ context.Context, id string, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return repository.ErrNotFound
	}
	if key.RevokedAt == nil {
		revokedAt := at
		key.RevokedAt = &revokedAt
		s.apiKeys[id] = key
	}
	return nil
}

// TouchLastUsed records the last successful verification time.
func (r *APIKeyRepository) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return repository.ErrNotFound
	}
	usedAt := at
	key.LastUsedAt = &usedAt
	s.apiKeys[id] = key
	return nil
}

var _ port.APIKeyRepository = (*APIKeyRepository)(nil)
