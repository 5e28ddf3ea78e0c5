package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func assertExpectations(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestUserRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	now := time.Now().UTC()
	user := domain.User{ID: "user-1", Email: "a@x.com", Name: "A", Role: domain.RoleAdmin, PasswordHash: "hash", CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(`INSERT INTO autodoc\.users`).
		WithArgs(user.ID, user.Email, user.Name, "admin", user.PasswordHash, user.InvitationID, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	assertExpectations(t, mock)
}

func TestUserRepository_CreateMapsConstraintViolations(t *testing.T) {
	for _, constraint := range []string{repository.ConstraintUserEmail, repository.ConstraintSingleAdmin} {
		mock := newMock(t)
		repo := NewUserRepository(mock)

		mock.ExpectExec(`INSERT INTO autodoc\.users`).
			WithArgs(anyArgs(8)...).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraint})

		err := repo.Create(context.Background(), domain.User{ID: "user-2", Email: "a@x.com", Role: domain.RoleAdmin})
		if !repository.IsConstraint(err, constraint) {
			t.Fatalf("expected %s violation, got %v", constraint, err)
		}
		if !errors.Is(err, repository.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		assertExpectations(t, mock)
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	now := time.Now().UTC()
	invitationID := "inv-1"
	rows := pgxmock.NewRows(userColumns).
		AddRow("user-1", "a@x.com", "A", "member", "hash", &invitationID, now, now)

	mock.ExpectQuery(`SELECT .* FROM autodoc\.users WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("A@x.com").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "A@x.com")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if user.Role != domain.RoleMember || user.InvitationID == nil || *user.InvitationID != invitationID {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.SystemAdmin() {
		t.Fatal("invited principal must not be a system admin")
	}
	assertExpectations(t, mock)
}

func TestUserRepository_GetByIDNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .* FROM autodoc\.users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestUserRepository_ListByRole(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(userColumns).
		AddRow("user-1", "a@x.com", "A", "admin", "hash", nil, now, now)

	mock.ExpectQuery(`SELECT .* FROM autodoc\.users WHERE role = \$1 ORDER BY created_at, id LIMIT 1`).
		WithArgs("admin").
		WillReturnRows(rows)

	users, err := repo.List(context.Background(), port.UserFilter{Field: port.UserFilterRole, Value: "admin", Limit: 1})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(users) != 1 || !users[0].SystemAdmin() {
		t.Fatalf("unexpected users: %+v", users)
	}
	assertExpectations(t, mock)
}

func TestUserRepository_DeleteMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec(`DELETE FROM autodoc\.users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestOrganizationRepository_CreateIsTransactional(t *testing.T) {
	mock := newMock(t)
	repo := NewOrganizationRepository(mock)

	now := time.Now().UTC()
	org := domain.Organization{ID: "org-1", Name: "Acme", Slug: "acme", OwnerID: "user-1", CreatedAt: now}
	owner := domain.Membership{OrganizationID: "org-1", UserID: "user-1", Role: domain.RoleOwner, CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO autodoc\.organizations`).
		WithArgs("org-1", "Acme", "acme", "user-1", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO autodoc\.memberships`).
		WithArgs("org-1", "user-1", "owner", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), org, owner); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	assertExpectations(t, mock)
}

func TestOrganizationRepository_CreateRollsBackOnSlugConflict(t *testing.T) {
	mock := newMock(t)
	repo := NewOrganizationRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO autodoc\.organizations`).
		WithArgs("org-1", "", "acme", "", time.Time{}).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: repository.ConstraintOrganizationSlug})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), domain.Organization{ID: "org-1", Slug: "acme"}, domain.Membership{OrganizationID: "org-1"})
	if !repository.IsConstraint(err, repository.ConstraintOrganizationSlug) {
		t.Fatalf("expected slug violation, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestOrganizationRepository_ListMembers(t *testing.T) {
	mock := newMock(t)
	repo := NewOrganizationRepository(mock)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM autodoc\.organizations WHERE id = \$1`).
		WithArgs("org-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "slug", "owner_id", "created_at"}).
			AddRow("org-1", "Acme", "acme", "user-1", now))
	mock.ExpectQuery(`SELECT .* FROM autodoc\.memberships m JOIN autodoc\.users u ON u\.id = m\.user_id WHERE m\.organization_id = \$1`).
		WithArgs("org-1").
		WillReturnRows(pgxmock.NewRows([]string{"organization_id", "user_id", "role", "created_at", "email", "name"}).
			AddRow("org-1", "user-1", "owner", now, "a@x.com", "A").
			AddRow("org-1", "user-2", "member", now, "b@x.com", "B"))

	members, err := repo.ListMembers(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("ListMembers returned error: %v", err)
	}
	if len(members) != 2 || members[1].Role != domain.RoleMember || members[1].Email != "b@x.com" {
		t.Fatalf("unexpected members: %+v", members)
	}
	assertExpectations(t, mock)
}

func TestInvitationRepository_AcceptIsConditional(t *testing.T) {
	mock := newMock(t)
	repo := NewInvitationRepository(mock)

	at := time.Now().UTC()
	membership := domain.Membership{OrganizationID: "org-1", UserID: "user-2", Role: domain.RoleMember, CreatedAt: at}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE autodoc\.invitations SET status = \$1, accepted_at = \$2, accepted_user_id = \$3 WHERE id = \$4 AND status = \$5 AND expires_at > \$6`).
		WithArgs("accepted", at, "user-2", "inv-1", "pending", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO autodoc\.memberships`).
		WithArgs("org-1", "user-2", "member", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := repo.Accept(context.Background(), "inv-1", membership, at); err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	assertExpectations(t, mock)
}

func TestInvitationRepository_AcceptClosedInvitation(t *testing.T) {
	mock := newMock(t)
	repo := NewInvitationRepository(mock)

	at := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE autodoc\.invitations`).
		WithArgs("accepted", at, "user-2", "inv-1", "pending", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Accept(context.Background(), "inv-1", domain.Membership{OrganizationID: "org-1", UserID: "user-2"}, at)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestInvitationRepository_ReopenDropsMembership(t *testing.T) {
	mock := newMock(t)
	repo := NewInvitationRepository(mock)

	userID := "user-2"
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT organization_id, accepted_user_id FROM autodoc\.invitations WHERE id = \$1 AND status = \$2 FOR UPDATE`).
		WithArgs("inv-1", "accepted").
		WillReturnRows(pgxmock.NewRows([]string{"organization_id", "accepted_user_id"}).AddRow("org-1", &userID))
	mock.ExpectExec(`UPDATE autodoc\.invitations SET status = \$1, accepted_at = \$2, accepted_user_id = \$3 WHERE id = \$4`).
		WithArgs("pending", nil, nil, "inv-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM autodoc\.memberships WHERE organization_id = \$1 AND user_id = \$2`).
		WithArgs("org-1", "user-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	if err := repo.Reopen(context.Background(), "inv-1"); err != nil {
		t.Fatalf("Reopen returned error: %v", err)
	}
	assertExpectations(t, mock)
}

func TestAPIKeyRepository_GetByHashDecodesJSON(t *testing.T) {
	mock := newMock(t)
	repo := NewAPIKeyRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(apiKeyColumns).AddRow(
		"key-1", "user-1", "acme-owner", "adg_abcdef", "hash-1",
		[]byte(`{"organization":["read","write"]}`),
		[]byte(`{"organizationId":"org-1","role":"owner"}`),
		now, nil, nil, nil,
	)
	mock.ExpectQuery(`SELECT .* FROM autodoc\.api_keys WHERE key_hash = \$1`).
		WithArgs("hash-1").
		WillReturnRows(rows)

	key, err := repo.GetByHash(context.Background(), "hash-1")
	if err != nil {
		t.Fatalf("GetByHash returned error: %v", err)
	}
	if key.OrganizationID() != "org-1" || key.Role() != domain.RoleOwner {
		t.Fatalf("unexpected metadata: %+v", key.Metadata)
	}
	if !key.Permissions.Allows(domain.RequirePermission(domain.ResourceOrganization, domain.ActionWrite)) {
		t.Fatalf("expected write permission, got %v", key.Permissions)
	}
	assertExpectations(t, mock)
}

func TestAPIKeyRepository_CreateAndRevoke(t *testing.T) {
	mock := newMock(t)
	repo := NewAPIKeyRepository(mock)

	now := time.Now().UTC()
	key := domain.APIKey{
		ID:          "key-1",
		UserID:      "user-1",
		Name:        "n",
		Prefix:      "adg_abcdef",
		KeyHash:     "hash-1",
		Permissions: domain.PermissionsForRole(domain.RoleMember),
		CreatedAt:   now,
	}

	mock.ExpectExec(`INSERT INTO autodoc\.api_keys`).
		WithArgs("key-1", "user-1", "n", "adg_abcdef", "hash-1", pgxmock.AnyArg(), pgxmock.AnyArg(), now, key.ExpiresAt, key.RevokedAt, key.LastUsedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE autodoc\.api_keys SET revoked_at = COALESCE\(revoked_at, \$1\) WHERE id = \$2`).
		WithArgs(now, "key-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE autodoc\.api_keys SET revoked_at`).
		WithArgs(now, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Create(context.Background(), key); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := repo.Revoke(context.Background(), "key-1", now); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if err := repo.Revoke(context.Background(), "missing", now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestEndpointRepository_UpdateDescription(t *testing.T) {
	mock := newMock(t)
	repo := NewEndpointRepository(mock)

	at := time.Now().UTC()
	mock.ExpectQuery(`UPDATE autodoc\.endpoints SET description = \$1, updated_at = \$2 WHERE id = \$3 AND organization_id = \$4 RETURNING`).
		WithArgs("Lists users", at, "ep-1", "org-1").
		WillReturnRows(pgxmock.NewRows(endpointColumns).
			AddRow("ep-1", "org-1", "GET", "/v1/users", "Lists users", at, at))

	ep, err := repo.UpdateDescription(context.Background(), "org-1", "ep-1", "Lists users", at)
	if err != nil {
		t.Fatalf("UpdateDescription returned error: %v", err)
	}
	if ep.Description != "Lists users" || ep.Method != "GET" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
	assertExpectations(t, mock)
}

func TestEndpointRepository_UpdateDescriptionMissing(t *testing.T) {
	at := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	for name, driverErr := range map[string]error{
		"no rows":     pgx.ErrNoRows,
		"invalid id": &pgconn.PgError{Code: pgInvalidTextRepr, Message: "invalid input syntax for type uuid"},
	} {
		mock := newMock(t)
		repo := NewEndpointRepository(mock)

		mock.ExpectQuery(`UPDATE autodoc\.endpoints`).
			WithArgs("d", at, "ep-x", "org-1").
			WillReturnError(driverErr)

		_, err := repo.UpdateDescription(context.Background(), "org-1", "ep-x", "d", at)
		if !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", name, err)
		}
		assertExpectations(t, mock)
	}
}

func TestEndpointRepository_CreateDuplicate(t *testing.T) {
	mock := newMock(t)
	repo := NewEndpointRepository(mock)

	mock.ExpectExec(`INSERT INTO autodoc\.endpoints`).
		WithArgs("ep-1", "org-1", "GET", "/", "", time.Time{}, time.Time{}).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "endpoints_organization_method_path_key"})

	err := repo.Create(context.Background(), domain.Endpoint{ID: "ep-1", OrganizationID: "org-1", Method: "GET", Path: "/"})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestLLMResponseRepository_UpdateSetsOnlyPatchedFields(t *testing.T) {
	mock := newMock(t)
	repo := NewLLMResponseRepository(mock)

	at := time.Now().UTC()
	model := "gpt-4.1"
	mock.ExpectQuery(`UPDATE autodoc\.llm_responses SET updated_at = \$1, model = \$2 WHERE id = \$3 AND organization_id = \$4 RETURNING`).
		WithArgs(at, model, "resp-1", "org-1").
		WillReturnRows(pgxmock.NewRows(llmResponseColumns).
			AddRow("resp-1", "org-1", nil, "p", "r", model, at, at))

	resp, err := repo.Update(context.Background(), "org-1", "resp-1", domain.LLMResponsePatch{Model: &model}, at)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if resp.Model != model || resp.UserID != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	assertExpectations(t, mock)
}

func TestLLMResponseRepository_ListNewestFirst(t *testing.T) {
	mock := newMock(t)
	repo := NewLLMResponseRepository(mock)

	now := time.Now().UTC()
	userID := "user-1"
	mock.ExpectQuery(`SELECT .* FROM autodoc\.llm_responses WHERE organization_id = \$1 ORDER BY created_at DESC, id LIMIT 10`).
		WithArgs("org-1").
		WillReturnRows(pgxmock.NewRows(llmResponseColumns).
			AddRow("resp-2", "org-1", &userID, "p2", "r2", "m", now, now).
			AddRow("resp-1", "org-1", &userID, "p1", "r1", "m", now.Add(-time.Minute), now))

	list, err := repo.List(context.Background(), "org-1", 10)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 2 || list[0].ID != "resp-2" || list[0].UserID != userID {
		t.Fatalf("unexpected list: %+v", list)
	}
	assertExpectations(t, mock)
}
