package memory

import (
	"maps"
	"sync"

	"github.com/arklim/autodoc-access/internal/core/domain"
)

// Store keeps every in-process table behind a single RWMutex so writers are serialized.
type Store struct {
	mu sync.RWMutex

	users         map[string]domain.User
	organizations map[string]domain.Organization
	memberships   map[string]map[string]domain.Membership
	invitations   map[string]domain.Invitation
	apiKeys       map[string]domain.APIKey
	keyByHash     map[string]string
	sessions      map[string]domain.Session
	endpoints     map[string]domain.Endpoint
	llmResponses  map[string]domain.LLMResponse
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:         make(map[string]domain.User),
		organizations: make(map[string]domain.Organization),
		memberships:   make(map[string]map[string]domain.Membership),
		invitations:   make(map[string]domain.Invitation),
		apiKeys:       make(map[string]domain.APIKey),
		keyByHash:     make(map[string]string),
		sessions:      make(map[string]domain.Session),
		endpoints:     make(map[string]domain.Endpoint),
		llmResponses:  make(map[string]domain.LLMResponse),
	}
}

// Repositories groups the in-memory repository facets over one store.
type Repositories struct {
	Users         *UserRepository
	Organizations *OrganizationRepository
	Invitations   *InvitationRepository
	APIKeys       *APIKeyRepository
	Sessions      *SessionRepository
	Endpoints     *EndpointRepository
	LLMResponses  *LLMResponseRepository
}

// NewRepositories wires all repositories backed by the provided store.
func NewRepositories(store *Store) *Repositories {
	return &Repositories{
		Users:         &UserRepository{store: store},
		Organizations: &OrganizationRepository{store: store},
		Invitations:   &InvitationRepository{store: store},
		APIKeys:       &APIKeyRepository{store: store},
		Sessions:      &SessionRepository{store: store},
		Endpoints:     &EndpointRepository{store: store},
		LLMResponses:  &LLMResponseRepository{store: store},
	}
}

// deleteOrganizationLocked removes an organization and everything scoped to it.
func (s *Store) deleteOrganizationLocked(orgID string) {
	delete(s.organizations, orgID)
	delete(s.memberships, orgID)
	for id, inv := range s.invitations {
		if inv.OrganizationID == orgID {
			delete(s.invitations, id)
		}
	}
	for id, ep := range s.endpoints {
		if ep.OrganizationID == orgID {
			delete(s.endpoints, id)
		}
	}
	for id, resp := range s.llmResponses {
		if resp.OrganizationID == orgID {
			delete(s.llmResponses, id)
		}
	}
}

func cloneKey(key domain.APIKey) domain.APIKey {
	key.Permissions = key.Permissions.Clone()
	key.Metadata = maps.Clone(key.Metadata)
	return key
}
