package port

import (
	"context"

	"github.com/arklim/autodoc-access/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishOrganizationCreated(ctx context.Context, event domain.OrganizationCreatedEvent) error
	PublishInvitationCreated(ctx context.Context, event domain.InvitationCreatedEvent) error
	PublishInvitationAccepted(ctx context.Context, event domain.InvitationAcceptedEvent) error
	PublishAPIKeyIssued(ctx context.Context, event domain.APIKeyIssuedEvent) error
}
