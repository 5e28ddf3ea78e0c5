package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published", append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(EventUserRegistered, event.UserID, event.RegisteredAt,
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("role", string(event.Role)),
		zap.String("strategy", event.Strategy),
	)
	return nil
}

func (p *StubPublisher) PublishOrganizationCreated(_ context.Context, event domain.OrganizationCreatedEvent) error {
	p.logEvent(EventOrganizationCreated, event.OwnerID, event.CreatedAt,
		zap.String("organization_id", event.OrganizationID),
		zap.String("slug", event.Slug),
	)
	return nil
}

func (p *StubPublisher) PublishInvitationCreated(_ context.Context, event domain.InvitationCreatedEvent) error {
	p.logEvent(EventInvitationCreated, event.InviterID, event.CreatedAt,
		zap.String("invitation_id", event.InvitationID),
		zap.String("organization_id", event.OrganizationID),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("role", string(event.Role)),
	)
	return nil
}

func (p *StubPublisher) PublishInvitationAccepted(_ context.Context, event domain.InvitationAcceptedEvent) error {
	p.logEvent(EventInvitationAccepted, event.UserID, event.AcceptedAt,
		zap.String("invitation_id", event.InvitationID),
		zap.String("organization_id", event.OrganizationID),
		zap.String("role", string(event.Role)),
	)
	return nil
}

func (p *StubPublisher) PublishAPIKeyIssued(_ context.Context, event domain.APIKeyIssuedEvent) error {
	p.logEvent(EventAPIKeyIssued, event.UserID, event.IssuedAt,
		zap.String("key_id", event.KeyID),
		zap.String("organization_id", event.OrganizationID),
		zap.String("reason", event.Reason),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
