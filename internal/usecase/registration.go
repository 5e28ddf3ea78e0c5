package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/infra/logger"
)

// RegistrationStrategy selects how a new account is bootstrapped.
type RegistrationStrategy string

const (
	// StrategyFlatAdmin creates a single principal: admin for the first account, user afterwards.
	StrategyFlatAdmin RegistrationStrategy = "flat_admin"
	// StrategyOrganizationOwner creates an owner, an organization and an owner-scoped API key.
	StrategyOrganizationOwner RegistrationStrategy = "organization_owner"
)

const (
	msgAdminCreated        = "Admin account created successfully"
	msgUserCreated         = "User account created successfully"
	msgOrganizationCreated = "Organization created successfully"
	msgLoginSuccessful     = "Login successful"
	msgRegistrationFailed  = "Registration failed"
)

// ParseRegistrationStrategy validates a configured strategy name.
func ParseRegistrationStrategy(value string) (RegistrationStrategy, error) {
	switch s := RegistrationStrategy(strings.ToLower(strings.TrimSpace(value))); s {
	case StrategyFlatAdmin, StrategyOrganizationOwner:
		return s, nil
	case "":
		return StrategyOrganizationOwner, nil
	}
	return "", fmt.Errorf("unknown registration strategy %q", value)
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
	Name     string `json:"name" validate:"required,max=200"`
}

// RegistrationResult is the structured outcome of a registration.
type RegistrationResult struct {
	Success        bool
	Message        string
	Role           domain.Role
	UserID         string
	OrganizationID string
	APIKey         string
}

// LoginInput is the login payload plus caller transport metadata.
type LoginInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        *string
	UserAgent *string
}

// UserSummary is the principal view returned on login.
type UserSummary struct {
	ID    string
	Email string
	Name  string
	Role  domain.Role
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Success   bool
	Message   string
	Session   string
	ExpiresAt time.Time
	User      UserSummary
}

// AccountService registers principals and signs them in.
type AccountService struct {
	provider  port.IdentityProvider
	policy    port.PasswordPolicy
	events    port.EventPublisher
	metrics   port.AccessMetrics
	logger    *zap.Logger
	strategy  RegistrationStrategy
	apiKeyTTL time.Duration
	clock     func() time.Time
}

// NewAccountService constructs an AccountService using the supplied strategy.
func NewAccountService(provider port.IdentityProvider, policy port.PasswordPolicy, strategy RegistrationStrategy, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strategy == "" {
		strategy = StrategyOrganizationOwner
	}
	return &AccountService{
		provider: provider,
		policy:   policy,
		metrics:  port.NoopAccessMetrics{},
		logger:   logger,
		strategy: strategy,
		clock:    time.Now,
	}
}

// WithEvents attaches an event publisher.
func (s *AccountService) WithEvents(events port.EventPublisher) *AccountService {
	s.events = events
	return s
}

// WithMetrics attaches an outcome recorder.
func (s *AccountService) WithMetrics(metrics port.AccessMetrics) *AccountService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// WithAPIKeyTTL sets the lifetime of keys issued at registration; zero keeps them non-expiring.
func (s *AccountService) WithAPIKeyTTL(ttl time.Duration) *AccountService {
	s.apiKeyTTL = ttl
	return s
}

// Strategy reports the configured registration strategy.
func (s *AccountService) Strategy() RegistrationStrategy {
	return s.strategy
}

// Register creates a principal according to the configured strategy.
// On failure the result carries Success=false and the caller-safe message alongside the error.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (result RegistrationResult, err error) {
	const op = "register"
	ctx, span := startSpan(ctx, "AccountService.Register", attribute.String("registration.strategy", string(s.strategy)))
	defer func() {
		endSpan(span, err)
		outcome := "success"
		if err != nil {
			outcome = "failure"
			result = RegistrationResult{Success: false, Message: MessageOf(err)}
			if result.Message == "" {
				result.Message = msgRegistrationFailed
			}
		}
		s.metrics.IncRegistration(string(s.strategy), outcome)
	}()

	input.Email = strings.TrimSpace(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if err := validateInput(op, input); err != nil {
		return RegistrationResult{}, err
	}
	if s.policy != nil {
		if err := s.policy.Validate(input.Password, input.Email, input.Name); err != nil {
			return RegistrationResult{}, classify(op, err)
		}
	}

	switch s.strategy {
	case StrategyFlatAdmin:
		return s.registerFlat(ctx, op, input)
	case StrategyOrganizationOwner:
		return s.registerOwner(ctx, op, input)
	}
	return RegistrationResult{}, newOpError(op, ErrValidationFailed, "registration strategy not configured", nil)
}

func (s *AccountService) elevatedExists(ctx context.Context) (bool, error) {
	admins, err := s.provider.ListUsers(ctx, port.UserFilter{Field: port.UserFilterRole, Value: string(domain.RoleAdmin)})
	if err != nil {
		return false, err
	}
	for _, admin := range admins {
		if admin.SystemAdmin() {
			return true, nil
		}
	}
	return false, nil
}

func (s *AccountService) registerFlat(ctx context.Context, op string, input RegisterInput) (RegistrationResult, error) {
	exists, err := s.elevatedExists(ctx)
	if err != nil {
		return RegistrationResult{}, classify(op, err)
	}

	role := domain.RoleUser
	if !exists {
		role = domain.RoleAdmin
	}

	newUser := port.NewUser{Email: input.Email, Password: input.Password, Name: input.Name, Role: role}
	user, err := s.provider.CreateUser(ctx, newUser)
	if errors.Is(err, port.ErrAdminExists) {
		// Another registration claimed the admin slot after our check.
		s.logger.Info("admin slot taken concurrently, registering as user", zap.String("email", logger.MaskEmail(input.Email)))
		newUser.Role = domain.RoleUser
		user, err = s.provider.CreateUser(ctx, newUser)
	}
	if err != nil {
		return RegistrationResult{}, classify(op, err)
	}

	s.publishRegistered(ctx, user, nil)

	message := msgUserCreated
	if user.Role == domain.RoleAdmin {
		message = msgAdminCreated
	}
	return RegistrationResult{Success: true, Message: message, Role: user.Role, UserID: user.ID}, nil
}

func (s *AccountService) registerOwner(ctx context.Context, op string, input RegisterInput) (RegistrationResult, error) {
	tx := newSaga(op, s.logger)

	user, err := s.provider.CreateUser(ctx, port.NewUser{
		Email:    input.Email,
		Password: input.Password,
		Name:     input.Name,
		Role:     domain.RoleOwner,
	})
	if err != nil {
		return RegistrationResult{}, classify(op, err)
	}
	tx.onFailure("delete_user", func(ctx context.Context) error {
		return s.provider.DeleteUser(ctx, user.ID)
	})

	org, err := s.provider.CreateOrganization(ctx, port.NewOrganization{
		Name:    input.Name,
		Slug:    domain.Slugify(input.Name),
		OwnerID: user.ID,
	})
	if err != nil {
		tx.rollback(ctx)
		return RegistrationResult{}, classify(op, err)
	}

	issued, err := s.provider.CreateAPIKey(ctx, port.NewAPIKey{
		UserID:      user.ID,
		Name:        org.Slug + "-owner",
		Permissions: domain.PermissionsForRole(domain.RoleOwner),
		Metadata: map[string]string{
			domain.MetadataOrganizationID: org.ID,
			domain.MetadataRole:           string(domain.RoleOwner),
		},
		ExpiresIn: s.apiKeyTTL,
	})
	if err != nil {
		tx.rollback(ctx)
		return RegistrationResult{}, classify(op, err)
	}

	s.publishRegistered(ctx, user, &org.ID)
	s.publishOrganization(ctx, org)
	publishKeyIssued(ctx, s.events, s.logger, issued.Key, "registration", s.clock())

	return RegistrationResult{
		Success:        true,
		Message:        msgOrganizationCreated,
		Role:           user.Role,
		UserID:         user.ID,
		OrganizationID: org.ID,
		APIKey:         issued.Secret,
	}, nil
}

// Login authenticates the principal and reports "admin" iff its stored role is elevated.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (result LoginResult, err error) {
	const op = "login"
	ctx, span := startSpan(ctx, "AccountService.Login")
	defer func() { endSpan(span, err) }()

	input.Email = strings.TrimSpace(input.Email)
	if err := validateInput(op, input); err != nil {
		return LoginResult{}, newOpError(op, ErrUnauthorized, "Invalid email or password", err)
	}

	session, user, err := s.provider.SignInEmail(ctx, input.Email, input.Password, port.SessionContext{IP: input.IP, UserAgent: input.UserAgent})
	if err != nil {
		if !errors.Is(err, port.ErrInvalidCredentials) {
			s.logger.Warn("sign in failed", zap.String("email", logger.MaskEmail(input.Email)), zap.Error(err))
		}
		return LoginResult{}, newOpError(op, ErrUnauthorized, "Invalid email or password", err)
	}

	matches, err := s.provider.ListUsers(ctx, port.UserFilter{Field: port.UserFilterID, Value: user.ID, Limit: 1})
	if err != nil {
		return LoginResult{}, classify(op, err)
	}

	role := domain.RoleUser
	if len(matches) > 0 && matches[0].Role.Elevated() {
		role = domain.RoleAdmin
	}

	return LoginResult{
		Success:   true,
		Message:   msgLoginSuccessful,
		Session:   session.Token,
		ExpiresAt: session.ExpiresAt,
		User: UserSummary{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  role,
		},
	}, nil
}

func (s *AccountService) publishRegistered(ctx context.Context, user domain.User, orgID *string) {
	if s.events == nil {
		return
	}
	event := domain.UserRegisteredEvent{
		EventID:        uuid.NewString(),
		UserID:         user.ID,
		Email:          user.Email,
		Role:           user.Role,
		Strategy:       string(s.strategy),
		OrganizationID: orgID,
		RegisteredAt:   user.CreatedAt,
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Warn("publish user registered event failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *AccountService) publishOrganization(ctx context.Context, org domain.Organization) {
	if s.events == nil {
		return
	}
	event := domain.OrganizationCreatedEvent{
		EventID:        uuid.NewString(),
		OrganizationID: org.ID,
		Name:           org.Name,
		Slug:           org.Slug,
		OwnerID:        org.OwnerID,
		CreatedAt:      org.CreatedAt,
	}
	if err := s.events.PublishOrganizationCreated(ctx, event); err != nil {
		s.logger.Warn("publish organization created event failed", zap.String("organization_id", org.ID), zap.Error(err))
	}
}

func publishKeyIssued(ctx context.Context, events port.EventPublisher, log *zap.Logger, key domain.APIKey, reason string, at time.Time) {
	if events == nil {
		return
	}
	event := domain.APIKeyIssuedEvent{
		EventID:        uuid.NewString(),
		KeyID:          key.ID,
		UserID:         key.UserID,
		OrganizationID: key.OrganizationID(),
		Permissions:    key.Permissions.Clone(),
		ExpiresAt:      key.ExpiresAt,
		IssuedAt:       at.UTC(),
		Reason:         reason,
	}
	if err := events.PublishAPIKeyIssued(ctx, event); err != nil {
		log.Warn("publish api key issued event failed", zap.String("key_id", key.ID), zap.Error(err))
	}
}
