package domain

import "time"

// UserRegisteredEvent represents the payload for autodoc.user.registered messages.
type UserRegisteredEvent struct {
	EventID        string
	UserID         string
	Email          string
	Role           Role
	Strategy       string
	OrganizationID *string
	RegisteredAt   time.Time
	Metadata       map[string]any
}

// OrganizationCreatedEvent represents the payload for autodoc.organization.created messages.
type OrganizationCreatedEvent struct {
	EventID        string
	OrganizationID string
	Name           string
	Slug           string
	OwnerID        string
	CreatedAt      time.Time
}

// InvitationCreatedEvent represents the payload for autodoc.invitation.created messages.
type InvitationCreatedEvent struct {
	EventID        string
	InvitationID   string
	OrganizationID string
	Email          string
	Role           Role
	InviterID      string
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// InvitationAcceptedEvent represents the payload for autodoc.invitation.accepted messages.
type InvitationAcceptedEvent struct {
	EventID        string
	InvitationID   string
	OrganizationID string
	UserID         string
	Role           Role
	AcceptedAt     time.Time
}

// APIKeyIssuedEvent represents the payload for autodoc.apikey.issued messages.
type APIKeyIssuedEvent struct {
	EventID        string
	KeyID          string
	UserID         string
	OrganizationID string
	Permissions    Permissions
	ExpiresAt      *time.Time
	IssuedAt       time.Time
	Reason         string
}
