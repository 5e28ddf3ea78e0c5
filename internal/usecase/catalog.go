package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

// RegisterEndpointInput describes an endpoint added to the catalog.
type RegisterEndpointInput struct {
	Method      string `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Path        string `json:"path" validate:"required,startswith=/,max=512"`
	Description string `json:"description" validate:"max=4000"`
}

// UpdateDescriptionInput replaces an endpoint description.
type UpdateDescriptionInput struct {
	Description string `json:"description" validate:"required,max=4000"`
}

// CatalogService serves organization-scoped reads and endpoint documentation writes.
type CatalogService struct {
	provider  port.IdentityProvider
	endpoints port.EndpointRepository
	logger    *zap.Logger
	clock     func() time.Time
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(provider port.IdentityProvider, endpoints port.EndpointRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{provider: provider, endpoints: endpoints, logger: logger, clock: time.Now}
}

// ListMembers returns the members of the caller's organization.
func (s *CatalogService) ListMembers(ctx context.Context, scope AccessScope) (members []domain.Member, err error) {
	const op = "list_members"
	ctx, span := startSpan(ctx, "CatalogService.ListMembers")
	defer func() { endSpan(span, err) }()

	if err := requireScope(op, scope); err != nil {
		return nil, err
	}
	members, err = s.provider.ListMembers(ctx, scope.OrganizationID)
	if err != nil {
		return nil, classify(op, err)
	}
	return members, nil
}

// ListEndpoints returns the endpoint catalog of the caller's organization.
func (s *CatalogService) ListEndpoints(ctx context.Context, scope AccessScope) (endpoints []domain.Endpoint, err error) {
	const op = "list_endpoints"
	ctx, span := startSpan(ctx, "CatalogService.ListEndpoints")
	defer func() { endSpan(span, err) }()

	if err := requireScope(op, scope); err != nil {
		return nil, err
	}
	endpoints, err = s.endpoints.ListByOrganization(ctx, scope.OrganizationID)
	if err != nil {
		return nil, newOpError(op, ErrUpstreamFailure, "endpoint store unavailable", err)
	}
	return endpoints, nil
}

// RegisterEndpoint adds an endpoint to the caller's catalog.
func (s *CatalogService) RegisterEndpoint(ctx context.Context, scope AccessScope, input RegisterEndpointInput) (endpoint domain.Endpoint, err error) {
	const op = "register_endpoint"
	ctx, span := startSpan(ctx, "CatalogService.RegisterEndpoint")
	defer func() { endSpan(span, err) }()

	if err := requireScope(op, scope); err != nil {
		return domain.Endpoint{}, err
	}
	input.Method = domain.NormalizeMethod(input.Method)
	input.Path = strings.TrimSpace(input.Path)
	if err := validateInput(op, input); err != nil {
		return domain.Endpoint{}, err
	}

	now := s.clock().UTC()
	endpoint = domain.Endpoint{
		ID:             uuid.NewString(),
		OrganizationID: scope.OrganizationID,
		Method:         input.Method,
		Path:           input.Path,
		Description:    strings.TrimSpace(input.Description),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.endpoints.Create(ctx, endpoint); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Endpoint{}, newOpError(op, ErrValidationFailed,
				fmt.Sprintf("endpoint %s %s already registered", endpoint.Method, endpoint.Path), err)
		}
		return domain.Endpoint{}, newOpError(op, ErrUpstreamFailure, "endpoint store unavailable", err)
	}
	return endpoint, nil
}

// UpdateDescription persists a new description for an endpoint in the caller's catalog.
func (s *CatalogService) UpdateDescription(ctx context.Context, scope AccessScope, endpointID string, input UpdateDescriptionInput) (endpoint domain.Endpoint, err error) {
	const op = "update_description"
	ctx, span := startSpan(ctx, "CatalogService.UpdateDescription")
	defer func() { endSpan(span, err) }()

	if err := requireScope(op, scope); err != nil {
		return domain.Endpoint{}, err
	}
	input.Description = strings.TrimSpace(input.Description)
	if err := validateInput(op, input); err != nil {
		return domain.Endpoint{}, err
	}

	updated, err := s.endpoints.UpdateDescription(ctx, scope.OrganizationID, strings.TrimSpace(endpointID), input.Description, s.clock().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Endpoint{}, newOpError(op, ErrNotFound, "endpoint not found", err)
		}
		return domain.Endpoint{}, newOpError(op, ErrUpstreamFailure, "endpoint store unavailable", err)
	}

	s.logger.Info("endpoint description updated",
		zap.String("endpoint_id", updated.ID),
		zap.String("organization_id", scope.OrganizationID),
		zap.String("key_id", scope.KeyID),
	)
	return *updated, nil
}

func requireScope(op string, scope AccessScope) error {
	if scope.OrganizationID == "" {
		return newOpError(op, ErrUnauthorized, "API key is not bound to an organization", nil)
	}
	return nil
}
