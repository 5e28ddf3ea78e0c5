package port

import (
	"context"
	"errors"
	"time"

	"github.com/arklim/autodoc-access/internal/core/domain"
)

var (
	// ErrEmailTaken indicates a principal with the same email already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrAdminExists indicates an elevated principal was requested while one already exists.
	ErrAdminExists = errors.New("an admin account already exists")
	// ErrInvalidCredentials indicates an unknown email or a mismatched password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrSlugTaken indicates an organization with the same slug already exists.
	ErrSlugTaken = errors.New("organization slug already taken")
	// ErrInvitationNotFound indicates the invitation is missing or no longer open.
	ErrInvitationNotFound = errors.New("invitation not found or expired")
	// ErrUserNotFound indicates the referenced principal does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrAPIKeyNotFound indicates the referenced credential does not exist.
	ErrAPIKeyNotFound = errors.New("api key not found")
)

// User filter fields understood by ListUsers.
const (
	UserFilterRole  = "role"
	UserFilterID    = "id"
	UserFilterEmail = "email"
)

// UserFilter narrows ListUsers to a single field match.
type UserFilter struct {
	Field string
	Value string
	Limit int
}

// NewUser is the input for principal creation.
type NewUser struct {
	Email        string
	Password     string
	Name         string
	Role         domain.Role
	InvitationID *string
}

// SessionContext carries caller transport metadata recorded on sessions.
type SessionContext struct {
	IP        *string
	UserAgent *string
}

// NewOrganization is the input for organization creation.
type NewOrganization struct {
	Name    string
	Slug    string
	OwnerID string
}

// NewInvitation is the input for invitation creation.
type NewInvitation struct {
	Email          string
	Role           domain.Role
	OrganizationID string
	InviterID      string
	TTL            time.Duration
}

// NewAPIKey is the input for credential issuance. A zero ExpiresIn yields a non-expiring key.
type NewAPIKey struct {
	UserID      string
	Name        string
	Permissions domain.Permissions
	Metadata    map[string]string
	ExpiresIn   time.Duration
}

// IdentityProvider is the credential store and session engine the access boundary delegates to.
type IdentityProvider interface {
	CreateUser(ctx context.Context, input NewUser) (domain.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]domain.User, error)
	DeleteUser(ctx context.Context, id string) error
	SignInEmail(ctx context.Context, email, password string, meta SessionContext) (domain.Session, domain.User, error)

	CreateOrganization(ctx context.Context, input NewOrganization) (domain.Organization, error)
	ListMembers(ctx context.Context, organizationID string) ([]domain.Member, error)

	CreateInvitation(ctx context.Context, input NewInvitation) (domain.Invitation, error)
	GetInvitation(ctx context.Context, id string) (domain.Invitation, error)
	AcceptInvitation(ctx context.Context, invitationID, userID string) (domain.Membership, error)
	ReopenInvitation(ctx context.Context, invitationID string) error

	CreateAPIKey(ctx context.Context, input NewAPIKey) (domain.IssuedAPIKey, error)
	VerifyAPIKey(ctx context.Context, secret string, required domain.Permissions) (domain.APIKeyVerification, error)
	RevokeAPIKey(ctx context.Context, id string) error
}
