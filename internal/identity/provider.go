// Package identity implements the credential store and session engine behind port.IdentityProvider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/infra/security"
	"github.com/arklim/autodoc-access/internal/repository"
)

const defaultSessionTTL = 7 * 24 * time.Hour

// Repositories are the tables the provider persists to.
type Repositories struct {
	Users         port.UserRepository
	Organizations port.OrganizationRepository
	Invitations   port.InvitationRepository
	APIKeys       port.APIKeyRepository
	Sessions      port.SessionRepository
}

// Config tunes session issuance.
type Config struct {
	Secret     string
	Issuer     string
	SessionTTL time.Duration
}

// Provider implements port.IdentityProvider.
type Provider struct {
	repos  Repositories
	hasher port.PasswordHasher
	signer *security.SessionSigner
	cfg    Config
	clock  func() time.Time
	logger *zap.Logger
}

// NewProvider validates its collaborators and returns a provider.
func NewProvider(repos Repositories, hasher port.PasswordHasher, cfg Config) (*Provider, error) {
	if repos.Users == nil || repos.Organizations == nil || repos.Invitations == nil || repos.APIKeys == nil || repos.Sessions == nil {
		return nil, fmt.Errorf("identity: all repositories are required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("identity: password hasher is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "autodoc"
	}

	signer, err := security.NewSessionSigner(cfg.Secret, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}

	return &Provider{
		repos:  repos,
		hasher: hasher,
		signer: signer,
		cfg:    cfg,
		clock:  time.Now,
		logger: zap.NewNop(),
	}, nil
}

// WithClock overrides the provider time source.
func (p *Provider) WithClock(clock func() time.Time) *Provider {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// WithLogger sets the logger used for best-effort writes.
func (p *Provider) WithLogger(logger *zap.Logger) *Provider {
	if logger != nil {
		p.logger = logger
	}
	return p
}

func (p *Provider) now() time.Time {
	return p.clock().UTC()
}

// CreateUser hashes the password and persists a new principal.
func (p *Provider) CreateUser(ctx context.Context, input port.NewUser) (domain.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return domain.User{}, fmt.Errorf("email is required")
	}
	if !input.Role.Valid() {
		return domain.User{}, fmt.Errorf("unknown role %q", input.Role)
	}

	hash, err := p.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := p.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		Role:         input.Role,
		PasswordHash: hash,
		InvitationID: input.InvitationID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := p.repos.Users.Create(ctx, user); err != nil {
		switch {
		case repository.IsConstraint(err, repository.ConstraintUserEmail):
			return domain.User{}, port.ErrEmailTaken
		case repository.IsConstraint(err, repository.ConstraintSingleAdmin):
			return domain.User{}, port.ErrAdminExists
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	return user.Sanitized(), nil
}

// ListUsers returns sanitized principals matching the filter.
func (p *Provider) ListUsers(ctx context.Context, filter port.UserFilter) ([]domain.User, error) {
	switch filter.Field {
	case port.UserFilterRole, port.UserFilterID, port.UserFilterEmail:
	default:
		return nil, fmt.Errorf("unsupported user filter field %q", filter.Field)
	}
	if filter.Field == port.UserFilterEmail {
		filter.Value = normalizeEmail(filter.Value)
	}

	users, err := p.repos.Users.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i] = users[i].Sanitized()
	}
	return users, nil
}

// DeleteUser removes a principal and everything it owns.
func (p *Provider) DeleteUser(ctx context.Context, id string) error {
	if err := p.repos.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return port.ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// SignInEmail verifies the password and issues a signed session token.
func (p *Provider) SignInEmail(ctx context.Context, email, password string, meta port.SessionContext) (domain.Session, domain.User, error) {
	user, err := p.repos.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Session{}, domain.User{}, port.ErrInvalidCredentials
		}
		return domain.Session{}, domain.User{}, fmt.Errorf("load user: %w", err)
	}

	ok, err := p.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return domain.Session{}, domain.User{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return domain.Session{}, domain.User{}, port.ErrInvalidCredentials
	}

	now := p.now()
	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(p.cfg.SessionTTL),
	}

	token, err := p.signer.Sign(session.ID, user.ID, user.Email, now, session.ExpiresAt)
	if err != nil {
		return domain.Session{}, domain.User{}, err
	}
	session.Token = token
	session.TokenHash = security.HashToken(token)

	if err := p.repos.Sessions.Create(ctx, session); err != nil {
		return domain.Session{}, domain.User{}, fmt.Errorf("persist session: %w", err)
	}

	return session, user.Sanitized(), nil
}

// CreateOrganization stores the organization and the owner's membership.
func (p *Provider) CreateOrganization(ctx context.Context, input port.NewOrganization) (domain.Organization, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Organization{}, fmt.Errorf("organization name is required")
	}
	slug := input.Slug
	if slug == "" {
		slug = domain.Slugify(name)
	}

	now := p.now()
	org := domain.Organization{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      slug,
		OwnerID:   input.OwnerID,
		CreatedAt: now,
	}
	owner := domain.Membership{OrganizationID: org.ID, UserID: input.OwnerID, Role: domain.RoleOwner, CreatedAt: now}

	if err := p.repos.Organizations.Create(ctx, org, owner); err != nil {
		switch {
		case repository.IsConstraint(err, repository.ConstraintOrganizationSlug):
			return domain.Organization{}, port.ErrSlugTaken
		case errors.Is(err, repository.ErrNotFound):
			return domain.Organization{}, port.ErrUserNotFound
		}
		return domain.Organization{}, fmt.Errorf("create organization: %w", err)
	}
	return org, nil
}

// ListMembers returns the organization's memberships joined with user details.
func (p *Provider) ListMembers(ctx context.Context, organizationID string) ([]domain.Member, error) {
	members, err := p.repos.Organizations.ListMembers(ctx, organizationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []domain.Member{}, nil
		}
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ port.IdentityProvider = (*Provider)(nil)
