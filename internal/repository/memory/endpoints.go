package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

// EndpointRepository implements port.EndpointRepository in memory.
type EndpointRepository struct {
	store *Store
}

// Create registers an endpoint; method and path are unique per organization.
func (r *EndpointRepository) Create(_ context.Context, endpoint domain.Endpoint) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.endpoints {
		if existing.OrganizationID == endpoint.OrganizationID &&
			existing.Method == endpoint.Method && existing.Path == endpoint.Path {
			return repository.ErrConflict
		}
	}
	s.endpoints[endpoint.ID] = endpoint
	return nil
}

// ListByOrganization returns the catalog ordered by path then method.
func (r *EndpointRepository) ListByOrganization(_ context.Context, organizationID string) ([]domain.Endpoint, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	endpoints := make([]domain.Endpoint, 0)
	for _, ep := range s.endpoints {
		if ep.OrganizationID == organizationID {
			endpoints = append(endpoints, ep)
		}
	}
	slices.SortFunc(endpoints, func(a, b domain.Endpoint) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Method, b.Method)
	})
	return endpoints, nil
}

// UpdateDescription replaces the description of an endpoint owned by the organization.
func (r *EndpointRepository) UpdateDescription(_ context.Context, organizationID, id, description string, at time.Time) (*domain.Endpoint, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[id]
	if !ok || ep.OrganizationID != organizationID {
		return nil, repository.ErrNotFound
	}
	ep.Description = description
	ep.UpdatedAt = at
	s.endpoints[id] = ep
	return &ep, nil
}

var _ port.EndpointRepository = (*EndpointRepository)(nil)
