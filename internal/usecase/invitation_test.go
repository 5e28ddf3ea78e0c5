package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
)

func inviteFor(t *testing.T, env *testEnv, scope AccessScope, email string, role domain.Role) InviteResult {
	t.Helper()
	result, err := env.invites.Invite(context.Background(), scope, InviteInput{Email: email, Role: role})
	if err != nil {
		t.Fatalf("Invite(%s): %v", email, err)
	}
	return result
}

func TestInviteBuildsAcceptURL(t *testing.T) {
	env := newTestEnv(t, StrategyOrganizationOwner)
	scope, _ := env.registerOwner(t, "owner@acme.io", "Acme")

	result := inviteFor(t, env, scope, "new@acme.io", domain.RoleMember)
	if !result.Success || result.InvitationID == "" {
		t.Fatalf("unexpected invite result: %+v", result)
	}
	want := "https://docs.example.com/autodoc/accept-invite?id=" + result.InvitationID
	if result.InviteURL != want {
		t.Fatalf("expected %s, got %s", want, result.InviteURL)
	}
	if !result.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %s", result.ExpiresAt)
	}

	inv, err := env.invites.Lookup(context.Background(), result.InvitationID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if inv.OrganizationID != scope.OrganizationID || inv.Role != domain.RoleMember || inv.InviterID != scope.UserID {
		t.Fatalf("unexpected invitation: %+v", inv)
	}
	if len(env.events.invited) != 1 {
		t.Fatalf("expected invitation event, got %d", len(env.events.invited))
	}
}

func TestInviteValidatesInput(t *testing.T) {
	env := newTestEnv(t, StrategyOrganizationOwner)
	scope, _ := env.registerOwner(t, "owner@acme.io", "Acme")
	ctx := context.Background()

	_, err := env.invites.Invite(ctx, scope, InviteInput{Email: "new@acme.io", Role: domain.RoleOwner})
	assertKind(t, err, ErrValidationFailed)

	_, err = env.invites.Invite(ctx, scope, InviteInput{Email: "bad", Role: domain.RoleMember})
	assertKind(t, err, ErrValidationFailed)

	_, err = env.invites.Invite(ctx, AccessScope{}, InviteInput{Email: "new@acme.io", Role: domain.RoleMember})
	assertKind(t, err, ErrUnauthorized)
}

func TestMemberInvitationIssuesReadOnlyKey(t *testing.T) {
	env := newTestEnv(t, StrategyOrganizationOwner)
	ctx := context.Background()
	scope, _ := env.registerOwner(t, "a@x.com", "Acme")

	invite := inviteFor(t, env, scope, "b@x.com", domain.RoleMember)
	accepted, err := env.invites.Accept(ctx, AcceptInviteInput{
		InvitationID: invite.InvitationID,
		Password:     "pw2",
		Name:         "Bee",
		Email:        "b@x.com",
	})
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !accepted.Success || accepted.Role != domain.RoleMember || accepted.OrganizationID != scope.OrganizationID {
		t.Fatalf("unexpected accept result: %+v", accepted)
	}

	memberScope, err := env.auth.Authorize(ctx, "list_members", accepted.APIKey, OrganizationPermission(domain.ActionRead))
	if err != nil {
		t.Fatalf("member key must satisfy read: %v", err)
	}
	if len(memberScope.Permissions[domain.ResourceOrganization]) != 1 {
		t.Fatalf("expected read-only permissions, got %v", memberScope.Permissions)
	}

	_, err = env.auth.Authorize(ctx, "update_description", accepted.APIKey, OrganizationPermission(domain.ActionWrite))
	assertKind(t, err, ErrUnauthorized)
	if MessageOf(err) != "API key lacks the required permission" {
		t.Fatalf("unexpected message %q", MessageOf(err))
	}

	_, err = env.invites.Accept(ctx, AcceptInviteInput{
		InvitationID: invite.InvitationID,
		Password:     "pw2",
		Name:         "Bee",
		Email:        "b@x.com",
	})
	assertKind(t, err, ErrNotFound)

	members, err := env.catalog.ListMembers(ctx, memberScope)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected owner and member, got %+v", members)
	}
	if got := env.metrics.count(env.metrics.invitations, "accept/not_found"); got != 1 {
		t.Fatalf("expected second accept recorded as not_found, got %d", got)
	}
}

func TestAdminInvitationsGrantFullPermissions(t *testing.T) {
	env := newTestEnv(t, StrategyOrganizationOwner)
	ctx := context.Background()
	scope, _ := env.registerOwner(t, "owner@acme.io", "Acme")

	for _, email := range []string{"admin1@acme.io", "admin2@acme.io"} {
		invite := inviteFor(t, env, scope, email, domain.RoleAdmin)
		accepted, err := env.invites.Accept(ctx, AcceptInviteInput{
			InvitationID: invite.InvitationID, Password: "pw", Name: "Admin", Email: email,
		})
		if err != nil {
			t.Fatalf("Accept(%s): %v", email, err)
		}
		if _, err := env.auth.Authorize(ctx, "delete", accepted.APIKey, OrganizationPermission(domain.ActionDelete)); err != nil {
			t.Fatalf("admin key must allow delete: %v", err)
		}
	}
}

func TestAcceptRequiresMatchingEmail(t *testing.T) {
	env := newTestEnv(t, StrategyOrganizationOwner)
	scope, _ := env.registerOwner(t, "owner@acme.io", "Acme")
	invite := inviteFor(t, env, scope, "new@acme.io", domain.RoleMember)

	_, err := env.invites.Accept(context.Background(), AcceptInviteInput{
		InvitationID: invite.InvitationID, Password: "pw", Name: "X", Email: "other@acme.io",
	})
	assertKind(t, err, ErrValidationFailed)

	if _, err := env.invites.Lookup(context.Background(), invite.InvitationID); err != nil {
		t.Fatalf("invitation must remain open after rejected accept: %v", err)
	}

	result, err := env.invites.Accept(context.Background(), AcceptInviteInput{
		InvitationID: invite.InvitationID, Password: "pw", Name: "X", Email: "NEW@Acme.io",
	})
	if err != nil || !result.Success {
		t.Fatalf("expected case-insensitive email match to be accepted, got %+v err=%v", result, err)
	}
}

func TestAcceptCompensatesWhenKeyIssuanceFails(t *testing.T) {
	env := newTestEnv(t, StrategyOrganizationOwner)
	ctx := context.Background()
	scope, _ := env.registerOwner(t, "owner@acme.io", "Acme")
	invite := inviteFor(t, env, scope, "new@acme.io", domain.RoleMember)

	env.faulty.createAPIKeyErr = errInjected
	input := AcceptInviteInput{InvitationID: invite.InvitationID, Password: "pw", Name: "New", Email: "new@acme.io"}
	_, err := env.invites.Accept(ctx, input)
	assertKind(t, err, ErrUpstreamFailure)

	if env.faulty.reopenCalls != 1 || env.faulty.deleteUserCalls != 1 {
		t.Fatalf("expected reopen and delete compensations, got reopen=%d delete=%d",
			env.faulty.reopenCalls, env.faulty.deleteUserCalls)
	}
	users, _ := env.provider.ListUsers(ctx, port.UserFilter{Field: port.UserFilterEmail, Value: "new@acme.io"})
	if len(users) != 0 {
		t.Fatalf("expected compensated user removal, got %+v", users)
	}
	members, _ := env.provider.ListMembers(ctx, scope.OrganizationID)
	if len(members) != 1 {
		t.Fatalf("expected only the owner membership, got %+v", members)
	}

	env.faulty.createAPIKeyErr = nil
	if _, err := env.invites.Accept(ctx, input); err != nil {
		t.Fatalf("accept after compensation failed: %v", err)
	}
}

func TestAcceptCompensatesWhenMembershipFails(t *testing.T) {
	env := newTestEnv(t, StrategyOrganizationOwner)
	ctx := context.Background()
	scope, _ := env.registerOwner(t, "owner@acme.io", "Acme")
	invite := inviteFor(t, env, scope, "new@acme.io", domain.RoleMember)

	env.faulty.acceptErr = errInjected
	_, err := env.invites.Accept(ctx, AcceptInviteInput{
		InvitationID: invite.InvitationID, Password: "pw", Name: "New", Email: "new@acme.io",
	})
	assertKind(t, err, ErrUpstreamFailure)
	if env.faulty.deleteUserCalls != 1 || env.faulty.reopenCalls != 0 {
		t.Fatalf("expected only user compensation, got delete=%d reopen=%d",
			env.faulty.deleteUserCalls, env.faulty.reopenCalls)
	}
}

func TestAcceptRejectedWhileLockHeld(t *testing.T) {
	env := newTestEnv(t, StrategyOrganizationOwner)
	ctx := context.Background()
	scope, _ := env.registerOwner(t, "owner@acme.io", "Acme")
	invite := inviteFor(t, env, scope, "new@acme.io", domain.RoleMember)

	token, ok, err := env.lock.TryLock(ctx, invite.InvitationID, time.Minute)
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}

	input := AcceptInviteInput{InvitationID: invite.InvitationID, Password: "pw", Name: "New", Email: "new@acme.io"}
	_, err = env.invites.Accept(ctx, input)
	assertKind(t, err, ErrNotFound)

	if err := env.lock.Unlock(ctx, invite.InvitationID, token); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := env.invites.Accept(ctx, input); err != nil {
		t.Fatalf("accept after unlock failed: %v", err)
	}
}

func TestConcurrentAcceptSucceedsOnce(t *testing.T) {
	env := newTestEnv(t, StrategyOrganizationOwner)
	ctx := context.Background()
	scope, _ := env.registerOwner(t, "owner@acme.io", "Acme")
	invite := inviteFor(t, env, scope, "new@acme.io", domain.RoleMember)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.invites.Accept(ctx, AcceptInviteInput{
				InvitationID: invite.InvitationID, Password: "pw", Name: "New", Email: "new@acme.io",
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful accept, got %d", successes)
	}
}

func TestLookupTreatsUnknownInvitationAsNotFound(t *testing.T) {
	env := newTestEnv(t, StrategyOrganizationOwner)

	for _, id := range []string{"", "not-a-uuid", "2f1d7c1e-5b0a-4c35-9f43-3f1a7f7c9a11"} {
		_, err := env.invites.Lookup(context.Background(), id)
		assertKind(t, err, ErrNotFound)
		if MessageOf(err) != "Invalid or expired invitation" {
			t.Fatalf("unexpected message %q for %q", MessageOf(err), id)
		}
	}
}
