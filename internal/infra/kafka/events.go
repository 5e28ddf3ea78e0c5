package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types published by the access service.
const (
	EventUserRegistered      = "autodoc.user.registered"
	EventOrganizationCreated = "autodoc.organization.created"
	EventInvitationCreated   = "autodoc.invitation.created"
	EventInvitationAccepted  = "autodoc.invitation.accepted"
	EventAPIKeyIssued        = "autodoc.apikey.issued"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID        string           `json:"event_id"`
	EventType      string           `json:"event_type"`
	UserID         string           `json:"user_id,omitempty"`
	OrganizationID string           `json:"organization_id,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
	Version        string           `json:"version"`
	Payload        any              `json:"payload"`
	Metadata       envelopeMetadata `json:"metadata,omitempty"`
}

// publish wraps payload in the envelope and keys the message by organization
// so one organization's events stay ordered on a partition.
func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID, organizationID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:        id,
		EventType:      eventType,
		UserID:         userID,
		OrganizationID: organizationID,
		Timestamp:      ts.UTC(),
		Version:        schemaVersion,
		Payload:        payload,
		Metadata:       metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	key := organizationID
	if key == "" {
		key = userID
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(bytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
			{Key: []byte("schema_version"), Value: []byte(schemaVersion)},
		},
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes autodoc.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID         string         `json:"user_id"`
		Email          string         `json:"email"`
		Role           string         `json:"role"`
		Strategy       string         `json:"strategy"`
		OrganizationID *string        `json:"organization_id,omitempty"`
		RegisteredAt   time.Time      `json:"registered_at"`
		Metadata       map[string]any `json:"metadata,omitempty"`
	}{
		UserID:         event.UserID,
		Email:          event.Email,
		Role:           string(event.Role),
		Strategy:       event.Strategy,
		OrganizationID: event.OrganizationID,
		RegisteredAt:   event.RegisteredAt.UTC(),
		Metadata:       event.Metadata,
	}

	orgID := ""
	if event.OrganizationID != nil {
		orgID = *event.OrganizationID
	}
	return p.publish(ctx, event.EventID, EventUserRegistered, event.UserID, orgID, event.RegisteredAt, payload)
}

// PublishOrganizationCreated publishes autodoc.organization.created events.
func (p *EventPublisher) PublishOrganizationCreated(ctx context.Context, event domain.OrganizationCreatedEvent) error {
	payload := struct {
		OrganizationID string    `json:"organization_id"`
		Name           string    `json:"name"`
		Slug           string    `json:"slug"`
		OwnerID        string    `json:"owner_id"`
		CreatedAt      time.Time `json:"created_at"`
	}{
		OrganizationID: event.OrganizationID,
		Name:           event.Name,
		Slug:           event.Slug,
		OwnerID:        event.OwnerID,
		CreatedAt:      event.CreatedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventOrganizationCreated, event.OwnerID, event.OrganizationID, event.CreatedAt, payload)
}

// PublishInvitationCreated publishes autodoc.invitation.created events.
func (p *EventPublisher) PublishInvitationCreated(ctx context.Context, event domain.InvitationCreatedEvent) error {
	payload := struct {
		InvitationID   string    `json:"invitation_id"`
		OrganizationID string    `json:"organization_id"`
		Email          string    `json:"email"`
		Role           string    `json:"role"`
		InviterID      string    `json:"inviter_id"`
		ExpiresAt      time.Time `json:"expires_at"`
		CreatedAt      time.Time `json:"created_at"`
	}{
		InvitationID:   event.InvitationID,
		OrganizationID: event.OrganizationID,
		Email:          event.Email,
		Role:           string(event.Role),
		InviterID:      event.InviterID,
		ExpiresAt:      event.ExpiresAt.UTC(),
		CreatedAt:      event.CreatedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventInvitationCreated, event.InviterID, event.OrganizationID, event.CreatedAt, payload)
}

// PublishInvitationAccepted publishes autodoc.invitation.accepted events.
func (p *EventPublisher) PublishInvitationAccepted(ctx context.Context, event domain.InvitationAcceptedEvent) error {
	payload := struct {
		InvitationID   string    `json:"invitation_id"`
		OrganizationID string    `json:"organization_id"`
		UserID         string    `json:"user_id"`
		Role           string    `json:"role"`
		AcceptedAt     time.Time `json:"accepted_at"`
	}{
		InvitationID:   event.InvitationID,
		OrganizationID: event.OrganizationID,
		UserID:         event.UserID,
		Role:           string(event.Role),
		AcceptedAt:     event.AcceptedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventInvitationAccepted, event.UserID, event.OrganizationID, event.AcceptedAt, payload)
}

// PublishAPIKeyIssued publishes autodoc.apikey.issued events. The secret never leaves the service.
func (p *EventPublisher) PublishAPIKeyIssued(ctx context.Context, event domain.APIKeyIssuedEvent) error {
	var expiresAt *time.Time
	if event.ExpiresAt != nil {
		utc := event.ExpiresAt.UTC()
		expiresAt = &utc
	}

	payload := struct {
		KeyID          string              `json:"key_id"`
		UserID         string              `json:"user_id"`
		OrganizationID string              `json:"organization_id,omitempty"`
		Permissions    map[string][]string `json:"permissions"`
		ExpiresAt      *time.Time          `json:"expires_at,omitempty"`
		IssuedAt       time.Time           `json:"issued_at"`
		Reason         string              `json:"reason"`
	}{
		KeyID:          event.KeyID,
		UserID:         event.UserID,
		OrganizationID: event.OrganizationID,
		Permissions:    event.Permissions,
		ExpiresAt:      expiresAt,
		IssuedAt:       event.IssuedAt.UTC(),
		Reason:         event.Reason,
	}

	return p.publish(ctx, event.EventID, EventAPIKeyIssued, event.UserID, event.OrganizationID, event.IssuedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
