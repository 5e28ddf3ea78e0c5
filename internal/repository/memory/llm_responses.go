package memory

import (
	"context"
	"slices"
	"time"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

// LLMResponseRepository implements port.LLMResponseRepository in memory.
type LLMResponseRepository struct {
	store *Store
}

// Create stores a response.
func (r *LLMResponseRepository) Create(_ context.Context, response domain.LLMResponse) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.llmResponses[response.ID]; ok {
		return repository.ErrConflict
	}
	s.llmResponses[response.ID] = response
	return nil
}

// List returns the organization's responses, newest first.
func (r *LLMResponseRepository) List(_ context.Context, organizationID string, limit int) ([]domain.LLMResponse, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LLMResponse, 0)
	for _, resp := range s.llmResponses {
		if resp.OrganizationID == organizationID {
			out = append(out, resp)
		}
	}
	slices.SortFunc(out, func(a, b domain.LLMResponse) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetByID retrieves a response scoped to the organization.
func (r *LLMResponseRepository) GetByID(_ context.Context, organizationID, id string) (*domain.LLMResponse, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, ok := s.llmResponses[id]
	if !ok || resp.OrganizationID != organizationID {
		return nil, repository.ErrNotFound
	}
	return &resp, nil
}

// Update applies a patch to a response scoped to the organization.
func (r *LLMResponseRepository) Update(_ context.Context, organizationID, id string, patch domain.LLMResponsePatch, at time.Time) (*domain.LLMResponse, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, ok := s.llmResponses[id]
	if !ok || resp.OrganizationID != organizationID {
		return nil, repository.ErrNotFound
	}
	patch.Apply(&resp)
	resp.UpdatedAt = at
	s.llmResponses[id] = resp
	return &resp, nil
}

// Delete removes a response scoped to the organization.
func (r *LLMResponseRepository) Delete(_ context.Context, organizationID, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, ok := s.llmResponses[id]
	if !ok || resp.OrganizationID != organizationID {
		return repository.ErrNotFound
	}
	delete(s.llmResponses, id)
	return nil
}

var _ port.LLMResponseRepository = (*LLMResponseRepository)(nil)
