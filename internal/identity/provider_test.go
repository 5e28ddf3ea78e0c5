package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/infra/security"
	"github.com/arklim/autodoc-access/internal/repository/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestProvider(t *testing.T) (*Provider, *testClock) {
	t.Helper()

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("NewArgon2Hasher: %v", err)
	}

	repos := memory.NewRepositories(memory.NewStore())
	provider, err := NewProvider(Repositories{
		Users:         repos.Users,
		Organizations: repos.Organizations,
		Invitations:   repos.Invitations,
		APIKeys:       repos.APIKeys,
		Sessions:      repos.Sessions,
	}, hasher, Config{Secret: testSecret, SessionTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	provider.WithClock(clock.Now)
	return provider, clock
}

func mustCreateUser(t *testing.T, p *Provider, email string, role domain.Role) domain.User {
	t.Helper()
	user, err := p.CreateUser(context.Background(), port.NewUser{Email: email, Password: "pw", Name: email, Role: role})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return user
}

func TestCreateUserEnforcesUniqueEmailAndSingleAdmin(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	admin := mustCreateUser(t, p, "A@X.com", domain.RoleAdmin)
	if admin.Email != "a@x.com" {
		t.Fatalf("expected normalized email, got %s", admin.Email)
	}
	if admin.PasswordHash != "" {
		t.Fatal("CreateUser must not return the password hash")
	}

	_, err := p.CreateUser(ctx, port.NewUser{Email: "a@x.com", Password: "pw", Role: domain.RoleUser})
	if !errors.Is(err, port.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	_, err = p.CreateUser(ctx, port.NewUser{Email: "b@x.com", Password: "pw", Role: domain.RoleAdmin})
	if !errors.Is(err, port.ErrAdminExists) {
		t.Fatalf("expected ErrAdminExists, got %v", err)
	}

	admins, err := p.ListUsers(ctx, port.UserFilter{Field: port.UserFilterRole, Value: string(domain.RoleAdmin), Limit: 1})
	if err != nil || len(admins) != 1 || admins[0].ID != admin.ID {
		t.Fatalf("unexpected admin listing %+v, err=%v", admins, err)
	}
}

func TestListUsersRejectsUnknownField(t *testing.T) {
	p, _ := newTestProvider(t)
	if _, err := p.ListUsers(context.Background(), port.UserFilter{Field: "password_hash"}); err == nil {
		t.Fatal("expected error for unsupported filter field")
	}
}

func TestSignInEmail(t *testing.T) {
	p, clock := newTestProvider(t)
	ctx := context.Background()
	user := mustCreateUser(t, p, "a@x.com", domain.RoleOwner)

	ip := "203.0.113.7"
	session, signedIn, err := p.SignInEmail(ctx, " A@x.com ", "pw", port.SessionContext{IP: &ip})
	if err != nil {
		t.Fatalf("SignInEmail returned error: %v", err)
	}
	if signedIn.ID != user.ID || signedIn.PasswordHash != "" {
		t.Fatalf("unexpected signed-in user %+v", signedIn)
	}
	if session.Token == "" || !session.ExpiresAt.Equal(clock.now.Add(time.Hour)) {
		t.Fatalf("unexpected session %+v", session)
	}

	claims, err := p.signer.Parse(session.Token, clock.now)
	if err != nil || claims.Subject != user.ID {
		t.Fatalf("session token does not carry the user, claims=%+v err=%v", claims, err)
	}

	if _, _, err := p.SignInEmail(ctx, "a@x.com", "wrong", port.SessionContext{}); !errors.Is(err, port.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, _, err := p.SignInEmail(ctx, "nobody@x.com", "pw", port.SessionContext{}); !errors.Is(err, port.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestCreateOrganizationAddsOwnerMembership(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	owner := mustCreateUser(t, p, "a@x.com", domain.RoleOwner)

	org, err := p.CreateOrganization(ctx, port.NewOrganization{Name: "Acme  Corp", OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("CreateOrganization returned error: %v", err)
	}
	if org.Slug != "acme-corp" {
		t.Fatalf("expected derived slug, got %s", org.Slug)
	}

	members, err := p.ListMembers(ctx, org.ID)
	if err != nil || len(members) != 1 || members[0].Role != domain.RoleOwner || members[0].Email != owner.Email {
		t.Fatalf("unexpected members %+v, err=%v", members, err)
	}

	other := mustCreateUser(t, p, "b@x.com", domain.RoleOwner)
	if _, err := p.CreateOrganization(ctx, port.NewOrganization{Name: "acme corp", OwnerID: other.ID}); !errors.Is(err, port.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestInvitationLifecycle(t *testing.T) {
	p, clock := newTestProvider(t)
	ctx := context.Background()
	owner := mustCreateUser(t, p, "owner@x.com", domain.RoleOwner)
	org, _ := p.CreateOrganization(ctx, port.NewOrganization{Name: "Acme", OwnerID: owner.ID})

	inv, err := p.CreateInvitation(ctx, port.NewInvitation{
		Email: "new@x.com", Role: domain.RoleMember, OrganizationID: org.ID, InviterID: owner.ID, TTL: 48 * time.Hour,
	})
	if err != nil {
		t.Fatalf("CreateInvitation returned error: %v", err)
	}

	if _, err := p.GetInvitation(ctx, inv.ID); err != nil {
		t.Fatalf("GetInvitation returned error: %v", err)
	}

	member := mustCreateUser(t, p, "new@x.com", domain.RoleMember)
	membership, err := p.AcceptInvitation(ctx, inv.ID, member.ID)
	if err != nil {
		t.Fatalf("AcceptInvitation returned error: %v", err)
	}
	if membership.Role != domain.RoleMember || membership.OrganizationID != org.ID {
		t.Fatalf("unexpected membership %+v", membership)
	}

	if _, err := p.GetInvitation(ctx, inv.ID); !errors.Is(err, port.ErrInvitationNotFound) {
		t.Fatalf("accepted invitation must be absent, got %v", err)
	}
	if _, err := p.AcceptInvitation(ctx, inv.ID, member.ID); !errors.Is(err, port.ErrInvitationNotFound) {
		t.Fatalf("second accept must fail with ErrInvitationNotFound, got %v", err)
	}

	if err := p.ReopenInvitation(ctx, inv.ID); err != nil {
		t.Fatalf("ReopenInvitation returned error: %v", err)
	}
	if _, err := p.GetInvitation(ctx, inv.ID); err != nil {
		t.Fatalf("reopened invitation must be open, got %v", err)
	}

	clock.now = clock.now.Add(49 * time.Hour)
	if _, err := p.GetInvitation(ctx, inv.ID); !errors.Is(err, port.ErrInvitationNotFound) {
		t.Fatalf("expired invitation must be absent, got %v", err)
	}
}

func TestCreateInvitationRejectsOwnerRole(t *testing.T) {
	p, _ := newTestProvider(t)
	_, err := p.CreateInvitation(context.Background(), port.NewInvitation{Role: domain.RoleOwner, TTL: time.Hour})
	if err == nil {
		t.Fatal("expected owner role to be rejected")
	}
}

func TestGetInvitationUnknownID(t *testing.T) {
	p, _ := newTestProvider(t)
	for _, id := range []string{"", "not-a-uuid", "3f1c5d0e-8f55-4c4b-9a44-5d0c0ad1b0a1"} {
		if _, err := p.GetInvitation(context.Background(), id); !errors.Is(err, port.ErrInvitationNotFound) {
			t.Fatalf("GetInvitation(%q): expected ErrInvitationNotFound, got %v", id, err)
		}
	}
}

func TestVerifyAPIKeyPermissions(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	user := mustCreateUser(t, p, "m@x.com", domain.RoleMember)

	issued, err := p.CreateAPIKey(ctx, port.NewAPIKey{
		UserID:      user.ID,
		Name:        "member key",
		Permissions: domain.PermissionsForRole(domain.RoleMember),
		Metadata:    map[string]string{domain.MetadataOrganizationID: "org-1", domain.MetadataRole: "member"},
	})
	if err != nil {
		t.Fatalf("CreateAPIKey returned error: %v", err)
	}
	if !strings.HasPrefix(issued.Secret, security.APIKeyPrefix) || issued.Key.KeyHash != "" {
		t.Fatalf("unexpected issued key %+v", issued)
	}
	if issued.Key.ExpiresAt != nil {
		t.Fatal("key without ExpiresIn must not expire")
	}

	read, err := p.VerifyAPIKey(ctx, issued.Secret, domain.RequirePermission(domain.ResourceOrganization, domain.ActionRead))
	if err != nil || !read.Valid {
		t.Fatalf("expected read verification to succeed, got %+v err=%v", read, err)
	}
	if read.Key.OrganizationID() != "org-1" {
		t.Fatalf("expected metadata on verified key, got %+v", read.Key.Metadata)
	}

	write, err := p.VerifyAPIKey(ctx, issued.Secret, domain.RequirePermission(domain.ResourceOrganization, domain.ActionWrite))
	if err != nil {
		t.Fatalf("VerifyAPIKey returned error: %v", err)
	}
	if write.Valid || write.Reason != domain.VerifyReasonInsufficient {
		t.Fatalf("expected write verification to fail, got %+v", write)
	}

	validity, _ := p.VerifyAPIKey(ctx, issued.Secret, nil)
	if !validity.Valid {
		t.Fatal("empty requirement must only check validity")
	}
}

type failingTouchRepository struct {
	*memory.APIKeyRepository
}

func (failingTouchRepository) TouchLastUsed(context.Context, string, time.Time) error {
	return errors.New("replica is read-only")
}

func TestVerifyAPIKeyLogsFailedLastUseWrite(t *testing.T) {
	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("NewArgon2Hasher: %v", err)
	}

	repos := memory.NewRepositories(memory.NewStore())
	p, err := NewProvider(Repositories{
		Users:         repos.Users,
		Organizations: repos.Organizations,
		Invitations:   repos.Invitations,
		APIKeys:       failingTouchRepository{repos.APIKeys},
		Sessions:      repos.Sessions,
	}, hasher, Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	core, logs := observer.New(zap.WarnLevel)
	p.WithLogger(zap.New(core))

	ctx := context.Background()
	user := mustCreateUser(t, p, "o@x.com", domain.RoleOwner)
	issued, err := p.CreateAPIKey(ctx, port.NewAPIKey{UserID: user.ID, Name: "k", Permissions: domain.PermissionsForRole(domain.RoleOwner)})
	if err != nil {
		t.Fatalf("CreateAPIKey returned error: %v", err)
	}

	result, err := p.VerifyAPIKey(ctx, issued.Secret, nil)
	if err != nil || !result.Valid {
		t.Fatalf("expected verification to succeed despite the failed write, got %+v err=%v", result, err)
	}

	entries := logs.FilterMessage("record api key last use failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["key_id"]; got != issued.Key.ID {
		t.Fatalf("expected key_id %q, got %v", issued.Key.ID, got)
	}
}

func TestVerifyAPIKeyLifecycle(t *testing.T) {
	p, clock := newTestProvider(t)
	ctx := context.Background()
	user := mustCreateUser(t, p, "o@x.com", domain.RoleOwner)

	issued, _ := p.CreateAPIKey(ctx, port.NewAPIKey{
		UserID:      user.ID,
		Permissions: domain.PermissionsForRole(domain.RoleOwner),
		ExpiresIn:   time.Hour,
	})

	cases := []struct {
		name   string
		secret string
		reason string
	}{
		{name: "missing", secret: "", reason: domain.VerifyReasonMissing},
		{name: "foreign format", secret: "sk_live_123", reason: domain.VerifyReasonUnknown},
		{name: "unknown", secret: security.APIKeyPrefix + "unknown", reason: domain.VerifyReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := p.VerifyAPIKey(ctx, tc.secret, nil)
			if err != nil || res.Valid || res.Reason != tc.reason {
				t.Fatalf("expected %s, got %+v err=%v", tc.reason, res, err)
			}
		})
	}

	clock.now = clock.now.Add(2 * time.Hour)
	expired, _ := p.VerifyAPIKey(ctx, issued.Secret, nil)
	if expired.Valid || expired.Reason != domain.VerifyReasonExpired {
		t.Fatalf("expected expired key, got %+v", expired)
	}

	other, _ := p.CreateAPIKey(ctx, port.NewAPIKey{UserID: user.ID, Permissions: domain.PermissionsForRole(domain.RoleOwner)})
	if err := p.RevokeAPIKey(ctx, other.Key.ID); err != nil {
		t.Fatalf("RevokeAPIKey returned error: %v", err)
	}
	revoked, _ := p.VerifyAPIKey(ctx, other.Secret, nil)
	if revoked.Valid || revoked.Reason != domain.VerifyReasonRevoked {
		t.Fatalf("expected revoked key, got %+v", revoked)
	}

	if err := p.RevokeAPIKey(ctx, "missing"); !errors.Is(err, port.ErrAPIKeyNotFound) {
		t.Fatalf("expected ErrAPIKeyNotFound, got %v", err)
	}
}

func TestDeleteUserRemovesCredentials(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	user := mustCreateUser(t, p, "o@x.com", domain.RoleOwner)
	issued, _ := p.CreateAPIKey(ctx, port.NewAPIKey{UserID: user.ID, Permissions: domain.PermissionsForRole(domain.RoleOwner)})

	if err := p.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser returned error: %v", err)
	}
	res, _ := p.VerifyAPIKey(ctx, issued.Secret, nil)
	if res.Valid {
		t.Fatal("credential must not survive its user")
	}
	if err := p.DeleteUser(ctx, user.ID); !errors.Is(err, port.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestNewProviderValidation(t *testing.T) {
	hasher, _ := security.NewArgon2Hasher(security.DefaultArgon2Config())
	repos := memory.NewRepositories(memory.NewStore())
	full := Repositories{
		Users: repos.Users, Organizations: repos.Organizations, Invitations: repos.Invitations,
		APIKeys: repos.APIKeys, Sessions: repos.Sessions,
	}

	if _, err := NewProvider(Repositories{}, hasher, Config{Secret: testSecret}); err == nil {
		t.Fatal("expected error for missing repositories")
	}
	if _, err := NewProvider(full, nil, Config{Secret: testSecret}); err == nil {
		t.Fatal("expected error for missing hasher")
	}
	if _, err := NewProvider(full, hasher, Config{Secret: "short"}); err == nil {
		t.Fatal("expected error for short secret")
	}
}
