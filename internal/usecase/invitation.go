package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/infra/logger"
)

const (
	defaultInvitationTTL = 48 * time.Hour
	defaultLockTTL       = 30 * time.Second
	acceptInvitePath     = "/autodoc/accept-invite"
)

// InvitationOptions configure invitation issuance and acceptance.
type InvitationOptions struct {
	BaseURL string
	TTL     time.Duration
	// InvitePermission is the organization action an API key needs to invite; empty checks validity only.
	InvitePermission string
	APIKeyTTL        time.Duration
	LockTTL          time.Duration
}

// InviteInput is the invitation issuance payload.
type InviteInput struct {
	Email string      `json:"email" validate:"required,email,max=254"`
	Role  domain.Role `json:"role" validate:"required,oneof=admin member"`
}

// InviteResult is returned after an invitation is created.
type InviteResult struct {
	Success      bool
	InvitationID string
	InviteURL    string
	ExpiresAt    time.Time
}

// AcceptInviteInput is the invitation acceptance payload.
type AcceptInviteInput struct {
	InvitationID string `json:"invitationId" validate:"required,uuid"`
	Password     string `json:"password" validate:"required,max=256"`
	Name         string `json:"name" validate:"required,max=200"`
	Email        string `json:"email" validate:"required,email,max=254"`
}

// AcceptInviteResult carries the credential issued to the new member.
type AcceptInviteResult struct {
	Success        bool
	APIKey         string
	Role           domain.Role
	OrganizationID string
}

// InvitationService issues and consumes invitations.
type InvitationService struct {
	provider port.IdentityProvider
	lock     port.InvitationLock
	policy   port.PasswordPolicy
	events   port.EventPublisher
	metrics  port.AccessMetrics
	logger   *zap.Logger
	opts     InvitationOptions
	clock    func() time.Time
}

// NewInvitationService constructs an InvitationService.
func NewInvitationService(provider port.IdentityProvider, lock port.InvitationLock, policy port.PasswordPolicy, opts InvitationOptions, logger *zap.Logger) *InvitationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultInvitationTTL
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	opts.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")

	return &InvitationService{
		provider: provider,
		lock:     lock,
		policy:   policy,
		metrics:  port.NoopAccessMetrics{},
		logger:   logger,
		opts:     opts,
		clock:    time.Now,
	}
}

// WithEvents attaches an event publisher.
func (s *InvitationService) WithEvents(events port.EventPublisher) *InvitationService {
	s.events = events
	return s
}

// WithMetrics attaches an outcome recorder.
func (s *InvitationService) WithMetrics(metrics port.AccessMetrics) *InvitationService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// InvitePermission returns the permission an API key needs to issue invitations.
func (s *InvitationService) InvitePermission() domain.Permissions {
	return OrganizationPermission(s.opts.InvitePermission)
}

// Invite creates an invitation into the caller's organization and returns its accept link.
func (s *InvitationService) Invite(ctx context.Context, scope AccessScope, input InviteInput) (result InviteResult, err error) {
	const op = "invite"
	ctx, span := startSpan(ctx, "InvitationService.Invite", attribute.String("access.organization_id", scope.OrganizationID))
	defer func() {
		endSpan(span, err)
		s.metrics.IncInvitation("issue", outcomeOf(err))
	}()

	if scope.OrganizationID == "" {
		return InviteResult{}, newOpError(op, ErrUnauthorized, "API key is not bound to an organization", nil)
	}
	input.Email = strings.TrimSpace(input.Email)
	if err := validateInput(op, input); err != nil {
		return InviteResult{}, err
	}

	inv, err := s.provider.CreateInvitation(ctx, port.NewInvitation{
		Email:          input.Email,
		Role:           input.Role,
		OrganizationID: scope.OrganizationID,
		InviterID:      scope.UserID,
		TTL:            s.opts.TTL,
	})
	if err != nil {
		return InviteResult{}, classify(op, err)
	}

	s.publishCreated(ctx, inv)

	return InviteResult{
		Success:      true,
		InvitationID: inv.ID,
		InviteURL:    s.InviteURL(inv.ID),
		ExpiresAt:    inv.ExpiresAt,
	}, nil
}

// InviteURL builds the accept link for an invitation id.
func (s *InvitationService) InviteURL(invitationID string) string {
	return s.opts.BaseURL + acceptInvitePath + "?id=" + url.QueryEscape(invitationID)
}

// Lookup returns an open invitation for the accept form.
func (s *InvitationService) Lookup(ctx context.Context, invitationID string) (inv domain.Invitation, err error) {
	const op = "accept_invite_render"
	ctx, span := startSpan(ctx, "InvitationService.Lookup")
	defer func() { endSpan(span, err) }()

	invitationID = strings.TrimSpace(invitationID)
	if invitationID == "" {
		return domain.Invitation{}, newOpError(op, ErrNotFound, "Invalid or expired invitation", nil)
	}

	inv, err = s.provider.GetInvitation(ctx, invitationID)
	if err != nil {
		return domain.Invitation{}, classify(op, err)
	}
	return inv, nil
}

// Accept consumes an invitation: it creates the principal, records the membership and issues a
// role-scoped API key. Completed steps are compensated when a later step fails.
func (s *InvitationService) Accept(ctx context.Context, input AcceptInviteInput) (result AcceptInviteResult, err error) {
	const op = "accept_invite"
	ctx, span := startSpan(ctx, "InvitationService.Accept", attribute.String("invitation.id", input.InvitationID))
	defer func() {
		endSpan(span, err)
		s.metrics.IncInvitation("accept", outcomeOf(err))
	}()

	input.InvitationID = strings.TrimSpace(input.InvitationID)
	input.Email = strings.TrimSpace(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if err := validateInput(op, input); err != nil {
		return AcceptInviteResult{}, err
	}

	token, ok, err := s.lock.TryLock(ctx, input.InvitationID, s.opts.LockTTL)
	if err != nil {
		return AcceptInviteResult{}, newOpError(op, ErrUpstreamFailure, "invitation lock unavailable", err)
	}
	if !ok {
		return AcceptInviteResult{}, newOpError(op, ErrNotFound, "Invitation is already being accepted", nil)
	}
	defer func() {
		if unlockErr := s.lock.Unlock(context.WithoutCancel(ctx), input.InvitationID, token); unlockErr != nil {
			s.logger.Warn("release invitation lock failed", zap.String("invitation_id", input.InvitationID), zap.Error(unlockErr))
		}
	}()

	inv, err := s.provider.GetInvitation(ctx, input.InvitationID)
	if err != nil {
		return AcceptInviteResult{}, classify(op, err)
	}
	if inv.Email != "" && !strings.EqualFold(inv.Email, input.Email) {
		return AcceptInviteResult{}, newOpError(op, ErrValidationFailed, "Email does not match the invitation", nil)
	}
	if s.policy != nil {
		if err := s.policy.Validate(input.Password, input.Email, input.Name); err != nil {
			return AcceptInviteResult{}, classify(op, err)
		}
	}

	tx := newSaga(op, s.logger)

	user, err := s.provider.CreateUser(ctx, port.NewUser{
		Email:        input.Email,
		Password:     input.Password,
		Name:         input.Name,
		Role:         inv.Role,
		InvitationID: &inv.ID,
	})
	if err != nil {
		return AcceptInviteResult{}, classify(op, err)
	}
	tx.onFailure("delete_user", func(ctx context.Context) error {
		return s.provider.DeleteUser(ctx, user.ID)
	})

	if _, err := s.provider.AcceptInvitation(ctx, inv.ID, user.ID); err != nil {
		tx.rollback(ctx)
		return AcceptInviteResult{}, classify(op, err)
	}
	tx.onFailure("reopen_invitation", func(ctx context.Context) error {
		return s.provider.ReopenInvitation(ctx, inv.ID)
	})

	issued, err := s.provider.CreateAPIKey(ctx, port.NewAPIKey{
		UserID:      user.ID,
		Name:        "invitation-" + inv.ID,
		Permissions: domain.PermissionsForRole(inv.Role),
		Metadata: map[string]string{
			domain.MetadataOrganizationID: inv.OrganizationID,
			domain.MetadataRole:           string(inv.Role),
		},
		ExpiresIn: s.opts.APIKeyTTL,
	})
	if err != nil {
		tx.rollback(ctx)
		return AcceptInviteResult{}, classify(op, err)
	}

	s.logger.Info("invitation accepted",
		zap.String("invitation_id", inv.ID),
		zap.String("organization_id", inv.OrganizationID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)
	s.publishAccepted(ctx, inv, user.ID)
	publishKeyIssued(ctx, s.events, s.logger, issued.Key, "invitation", s.clock())

	return AcceptInviteResult{
		Success:        true,
		APIKey:         issued.Secret,
		Role:           inv.Role,
		OrganizationID: inv.OrganizationID,
	}, nil
}

func (s *InvitationService) publishCreated(ctx context.Context, inv domain.Invitation) {
	if s.events == nil {
		return
	}
	event := domain.InvitationCreatedEvent{
		EventID:        uuid.NewString(),
		InvitationID:   inv.ID,
		OrganizationID: inv.OrganizationID,
		Email:          inv.Email,
		Role:           inv.Role,
		InviterID:      inv.InviterID,
		ExpiresAt:      inv.ExpiresAt,
		CreatedAt:      inv.CreatedAt,
	}
	if err := s.events.PublishInvitationCreated(ctx, event); err != nil {
		s.logger.Warn("publish invitation created event failed", zap.String("invitation_id", inv.ID), zap.Error(err))
	}
}

func (s *InvitationService) publishAccepted(ctx context.Context, inv domain.Invitation, userID string) {
	if s.events == nil {
		return
	}
	event := domain.InvitationAcceptedEvent{
		EventID:        uuid.NewString(),
		InvitationID:   inv.ID,
		OrganizationID: inv.OrganizationID,
		UserID:         userID,
		Role:           inv.Role,
		AcceptedAt:     s.clock().UTC(),
	}
	if err := s.events.PublishInvitationAccepted(ctx, event); err != nil {
		s.logger.Warn("publish invitation accepted event failed", zap.String("invitation_id", inv.ID), zap.Error(err))
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidationFailed):
		return "invalid"
	}
	return "error"
}
