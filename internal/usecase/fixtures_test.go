package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/identity"
	"github.com/arklim/autodoc-access/internal/infra/security"
	"github.com/arklim/autodoc-access/internal/repository/memory"
)

const testSessionSecret = "0123456789abcdef0123456789abcdef"

var errInjected = errors.New("injected failure")

type testEnv struct {
	store     *memory.Store
	repos     *memory.Repositories
	provider  *identity.Provider
	faulty    *faultyProvider
	lock      *memory.InvitationLock
	events    *recordingEvents
	metrics   *recordingMetrics
	accounts  *AccountService
	invites   *InvitationService
	auth      *Authorizer
	catalog   *CatalogService
	responses *LLMResponseService
}

func newTestEnv(t *testing.T, strategy RegistrationStrategy) *testEnv {
	t.Helper()

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("NewArgon2Hasher: %v", err)
	}

	store := memory.NewStore()
	repos := memory.NewRepositories(store)
	provider, err := identity.NewProvider(identity.Repositories{
		Users:         repos.Users,
		Organizations: repos.Organizations,
		Invitations:   repos.Invitations,
		APIKeys:       repos.APIKeys,
		Sessions:      repos.Sessions,
	}, hasher, identity.Config{Secret: testSessionSecret, SessionTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	env := &testEnv{
		store:    store,
		repos:    repos,
		provider: provider,
		faulty:   &faultyProvider{IdentityProvider: provider},
		lock:     memory.NewInvitationLock(),
		events:   &recordingEvents{},
		metrics:  &recordingMetrics{},
	}

	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{})
	logger := zap.NewNop()

	env.accounts = NewAccountService(env.faulty, policy, strategy, logger).
		WithEvents(env.events).
		WithMetrics(env.metrics)
	env.invites = NewInvitationService(env.faulty, env.lock, policy, InvitationOptions{
		BaseURL:          "https://docs.example.com/",
		InvitePermission: domain.ActionWrite,
	}, logger).
		WithEvents(env.events).
		WithMetrics(env.metrics)
	env.auth = NewAuthorizer(env.faulty, env.metrics, logger)
	env.catalog = NewCatalogService(env.faulty, repos.Endpoints, logger)
	env.responses = NewLLMResponseService(repos.LLMResponses)
	return env
}

// registerOwner registers an organization owner and returns its verified scope and key secret.
func (e *testEnv) registerOwner(t *testing.T, email, name string) (AccessScope, string) {
	t.Helper()
	result, err := e.accounts.Register(context.Background(), RegisterInput{Email: email, Password: "pw", Name: name})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	scope, err := e.auth.Authorize(context.Background(), "test", result.APIKey, OrganizationPermission(domain.ActionWrite))
	if err != nil {
		t.Fatalf("Authorize owner key: %v", err)
	}
	return scope, result.APIKey
}

func assertKind(t *testing.T, err error, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v error, got %v", kind, err)
	}
}

// faultyProvider wraps a real provider and injects failures into selected calls.
type faultyProvider struct {
	port.IdentityProvider

	mu               sync.Mutex
	hideAdmins       bool
	createOrgErr     error
	createAPIKeyErr  error
	acceptErr        error
	deleteUserCalls  int
	reopenCalls      int
	createUserCalls  int
	createdUserRoles []domain.Role
}

func (f *faultyProvider) CreateUser(ctx context.Context, input port.NewUser) (domain.User, error) {
	f.mu.Lock()
	f.createUserCalls++
	f.createdUserRoles = append(f.createdUserRoles, input.Role)
	f.mu.Unlock()
	return f.IdentityProvider.CreateUser(ctx, input)
}

func (f *faultyProvider) ListUsers(ctx context.Context, filter port.UserFilter) ([]domain.User, error) {
	if f.hideAdmins && filter.Field == port.UserFilterRole {
		return []domain.User{}, nil
	}
	return f.IdentityProvider.ListUsers(ctx, filter)
}

func (f *faultyProvider) DeleteUser(ctx context.Context, id string) error {
	f.mu.Lock()
	f.deleteUserCalls++
	f.mu.Unlock()
	return f.IdentityProvider.DeleteUser(ctx, id)
}

func (f *faultyProvider) CreateOrganization(ctx context.Context, input port.NewOrganization) (domain.Organization, error) {
	if f.createOrgErr != nil {
		return domain.Organization{}, f.createOrgErr
	}
	return f.IdentityProvider.CreateOrganization(ctx, input)
}

func (f *faultyProvider) AcceptInvitation(ctx context.Context, invitationID, userID string) (domain.Membership, error) {
	if f.acceptErr != nil {
		return domain.Membership{}, f.acceptErr
	}
	return f.IdentityProvider.AcceptInvitation(ctx, invitationID, userID)
}

func (f *faultyProvider) ReopenInvitation(ctx context.Context, invitationID string) error {
	f.mu.Lock()
	f.reopenCalls++
	f.mu.Unlock()
	return f.IdentityProvider.ReopenInvitation(ctx, invitationID)
}

func (f *faultyProvider) CreateAPIKey(ctx context.Context, input port.NewAPIKey) (domain.IssuedAPIKey, error) {
	if f.createAPIKeyErr != nil {
		return domain.IssuedAPIKey{}, f.createAPIKeyErr
	}
	return f.IdentityProvider.CreateAPIKey(ctx, input)
}

type recordingEvents struct {
	mu            sync.Mutex
	registered    []domain.UserRegisteredEvent
	organizations []domain.OrganizationCreatedEvent
	invited       []domain.InvitationCreatedEvent
	accepted      []domain.InvitationAcceptedEvent
	keys          []domain.APIKeyIssuedEvent
	err           error
}

func (r *recordingEvents) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, event)
	return r.err
}

func (r *recordingEvents) PublishOrganizationCreated(_ context.Context, event domain.OrganizationCreatedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.organizations = append(r.organizations, event)
	return r.err
}

func (r *recordingEvents) PublishInvitationCreated(_ context.Context, event domain.InvitationCreatedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invited = append(r.invited, event)
	return r.err
}

func (r *recordingEvents) PublishInvitationAccepted(_ context.Context, event domain.InvitationAcceptedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accepted = append(r.accepted, event)
	return r.err
}

func (r *recordingEvents) PublishAPIKeyIssued(_ context.Context, event domain.APIKeyIssuedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, event)
	return r.err
}

type recordingMetrics struct {
	mu            sync.Mutex
	verifications map[string]int
	registrations map[string]int
	invitations   map[string]int
}

func (m *recordingMetrics) bump(target *map[string]int, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if *target == nil {
		*target = make(map[string]int)
	}
	(*target)[key]++
}

func (m *recordingMetrics) count(target map[string]int, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return target[key]
}

func (m *recordingMetrics) ObserveVerification(operation, outcome string) {
	m.bump(&m.verifications, operation+"/"+outcome)
}

func (m *recordingMetrics) IncRegistration(strategy, outcome string) {
	m.bump(&m.registrations, strategy+"/"+outcome)
}

func (m *recordingMetrics) IncInvitation(stage, outcome string) {
	m.bump(&m.invitations, stage+"/"+outcome)
}
