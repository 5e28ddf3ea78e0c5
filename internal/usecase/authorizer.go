package usecase

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
)

// AccessScope is the verified identity behind an API key.
type AccessScope struct {
	KeyID          string
	UserID         string
	OrganizationID string
	Role           domain.Role
	Permissions    domain.Permissions
}

// OrganizationPermission builds the requirement for action on the caller's organization.
// An empty action only requires a valid key.
func OrganizationPermission(action string) domain.Permissions {
	if action == "" {
		return domain.Permissions{}
	}
	return domain.RequirePermission(domain.ResourceOrganization, action)
}

// Authorizer verifies presented API keys through the identity provider.
type Authorizer struct {
	provider port.IdentityProvider
	metrics  port.AccessMetrics
	logger   *zap.Logger
}

// NewAuthorizer constructs an Authorizer.
func NewAuthorizer(provider port.IdentityProvider, metrics port.AccessMetrics, logger *zap.Logger) *Authorizer {
	if metrics == nil {
		metrics = port.NoopAccessMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authorizer{provider: provider, metrics: metrics, logger: logger}
}

// Authorize verifies secret against required and resolves the organization scope bound to the key.
func (a *Authorizer) Authorize(ctx context.Context, operation, secret string, required domain.Permissions) (scope AccessScope, err error) {
	ctx, span := startSpan(ctx, "Authorizer.Authorize", attribute.String("access.operation", operation))
	defer func() { endSpan(span, err) }()

	result, err := a.provider.VerifyAPIKey(ctx, secret, required)
	if err != nil {
		a.metrics.ObserveVerification(operation, "error")
		return AccessScope{}, classify(operation, err)
	}

	if !result.Valid || result.Key == nil {
		a.metrics.ObserveVerification(operation, result.Reason)
		return AccessScope{}, newOpError(operation, ErrUnauthorized, verificationMessage(result.Reason), nil)
	}

	key := result.Key
	orgID := key.OrganizationID()
	if orgID == "" {
		a.metrics.ObserveVerification(operation, "unbound_key")
		a.logger.Warn("api key without organization binding", zap.String("key_id", key.ID), zap.String("operation", operation))
		return AccessScope{}, newOpError(operation, ErrUnauthorized, "API key is not bound to an organization", nil)
	}

	a.metrics.ObserveVerification(operation, "allowed")
	span.SetAttributes(attribute.String("access.organization_id", orgID))

	return AccessScope{
		KeyID:          key.ID,
		UserID:         key.UserID,
		OrganizationID: orgID,
		Role:           key.Role(),
		Permissions:    key.Permissions,
	}, nil
}

func verificationMessage(reason string) string {
	switch reason {
	case domain.VerifyReasonMissing:
		return "API key is required"
	case domain.VerifyReasonInsufficient:
		return "API key lacks the required permission"
	case domain.VerifyReasonRevoked:
		return "API key has been revoked"
	case domain.VerifyReasonExpired:
		return "API key has expired"
	}
	return "Invalid API key"
}
