package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

var invitationColumns = []string{
	"id",
	"organization_id",
	"email",
	"role",
	"inviter_id",
	"status",
	"created_at",
	"expires_at",
	"accepted_at",
	"accepted_user_id",
}

// InvitationRepository implements port.InvitationRepository over PostgreSQL.
type InvitationRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewInvitationRepository constructs an invitation repository.
func NewInvitationRepository(exec pgExecutor) *InvitationRepository {
	return &InvitationRepository{exec: exec, builder: newBuilder()}
}

// Create inserts a pending invitation.
func (r *InvitationRepository) Create(ctx context.Context, inv domain.Invitation) error {
	stmt, args, err := r.builder.Insert(table("invitations")).
		Columns(invitationColumns...).
		Values(
			inv.ID,
			inv.OrganizationID,
			inv.Email,
			string(inv.Role),
			inv.InviterID,
			string(inv.Status),
			inv.CreatedAt,
			inv.ExpiresAt,
			inv.AcceptedAt,
			inv.AcceptedUserID,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert invitation sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return wrap("insert invitation", err)
	}
	return nil
}

// GetByID retrieves an invitation regardless of its status.
func (r *InvitationRepository) GetByID(ctx context.Context, id string) (*domain.Invitation, error) {
	stmt, args, err := r.builder.Select(invitationColumns...).
		From(table("invitations")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select invitation sql: %w", err)
	}

	var (
		inv          domain.Invitation
		role, status string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&inv.ID,
		&inv.OrganizationID,
		&inv.Email,
		&role,
		&inv.InviterID,
		&status,
		&inv.CreatedAt,
		&inv.ExpiresAt,
		&inv.AcceptedAt,
		&inv.AcceptedUserID,
	); err != nil {
		return nil, wrap("scan invitation", err)
	}
	inv.Role = domain.Role(role)
	inv.Status = domain.InvitationStatus(status)
	return &inv, nil
}

// Accept flips a pending, unexpired invitation and inserts the membership in one transaction.
// The conditional update makes concurrent acceptances race on a single row.
func (r *InvitationRepository) Accept(ctx context.Context, id string, membership domain.Membership, at time.Time) error {
	updateStmt, updateArgs, err := r.builder.Update(table("invitations")).
		Set("status", string(domain.InvitationStatusAccepted)).
		Set("accepted_at", at).
		Set("accepted_user_id", membership.UserID).
		Where(squirrel.Eq{"id": id, "status": string(domain.InvitationStatusPending)}).
		Where(squirrel.Gt{"expires_at": at}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build accept invitation sql: %w", err)
	}
	memberStmt, memberArgs, err := r.builder.Insert(table("memberships")).
		Columns("organization_id", "user_id", "role", "created_at").
		Values(membership.OrganizationID, membership.UserID, string(membership.Role), membership.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert membership sql: %w", err)
	}

	return withTx(ctx, r.exec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateStmt, updateArgs...)
		if err != nil {
			return wrap("accept invitation", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		if _, err := tx.Exec(ctx, memberStmt, memberArgs...); err != nil {
			return wrap("insert membership", err)
		}
		return nil
	})
}

// Reopen reverts an accepted invitation to pending and deletes the membership it created.
func (r *InvitationRepository) Reopen(ctx context.Context, id string) error {
	selectStmt, selectArgs, err := r.builder.Select("organization_id", "accepted_user_id").
		From(table("invitations")).
		Where(squirrel.Eq{"id": id, "status": string(domain.InvitationStatusAccepted)}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lock invitation sql: %w", err)
	}
	updateStmt, updateArgs, err := r.builder.Update(table("invitations")).
		Set("status", string(domain.InvitationStatusPending)).
		Set("accepted_at", nil).
		Set("accepted_user_id", nil).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reopen invitation sql: %w", err)
	}

	return withTx(ctx, r.exec, func(tx pgx.Tx) error {
		var (
			orgID  string
			userID *string
		)
		if err := tx.QueryRow(ctx, selectStmt, selectArgs...).Scan(&orgID, &userID); err != nil {
			return wrap("lock invitation", err)
		}
		if _, err := tx.Exec(ctx, updateStmt, updateArgs...); err != nil {
			return wrap("reopen invitation", err)
		}
		if userID == nil {
			return nil
		}

		deleteStmt, deleteArgs, err := r.builder.Delete(table("memberships")).
			Where(squirrel.Eq{"organization_id": orgID, "user_id": *userID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete membership sql: %w", err)
		}
		if _, err := tx.Exec(ctx, deleteStmt, deleteArgs...); err != nil {
			return wrap("delete membership", err)
		}
		return nil
	})
}

var _ port.InvitationRepository = (*InvitationRepository)(nil)
