package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

// OrganizationRepository implements port.OrganizationRepository over PostgreSQL.
type OrganizationRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewOrganizationRepository constructs an organization repository.
func NewOrganizationRepository(exec pgExecutor) *OrganizationRepository {
	return &OrganizationRepository{exec: exec, builder: newBuilder()}
}

// Create inserts the organization and the owner membership in one transaction.
func (r *OrganizationRepository) Create(ctx context.Context, org domain.Organization, owner domain.Membership) error {
	orgStmt, orgArgs, err := r.builder.Insert(table("organizations")).
		Columns("id", "name", "slug", "owner_id", "created_at").
		Values(org.ID, org.Name, org.Slug, org.OwnerID, org.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert organization sql: %w", err)
	}
	memberStmt, memberArgs, err := r.insertMembership(owner)
	if err != nil {
		return err
	}

	return withTx(ctx, r.exec, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, orgStmt, orgArgs...); err != nil {
			return wrap("insert organization", err)
		}
		if _, err := tx.Exec(ctx, memberStmt, memberArgs...); err != nil {
			return wrap("insert owner membership", err)
		}
		return nil
	})
}

// GetByID retrieves an organization by identifier.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	stmt, args, err := r.builder.Select("id", "name", "slug", "owner_id", "created_at").
		From(table("organizations")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select organization sql: %w", err)
	}

	var org domain.Organization
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&org.ID, &org.Name, &org.Slug, &org.OwnerID, &org.CreatedAt); err != nil {
		return nil, wrap("scan organization", err)
	}
	return &org, nil
}

// AddMember inserts a membership row.
func (r *OrganizationRepository) AddMember(ctx context.Context, membership domain.Membership) error {
	stmt, args, err := r.insertMembership(membership)
	if err != nil {
		return err
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return wrap("insert membership", err)
	}
	return nil
}

// RemoveMember deletes a membership row.
func (r *OrganizationRepository) RemoveMember(ctx context.Context, organizationID, userID string) error {
	stmt, args, err := r.builder.Delete(table("memberships")).
		Where(squirrel.Eq{"organization_id": organizationID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete membership sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return wrap("delete membership", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListMembers returns memberships joined with user details, oldest first.
// An unknown organization yields repository.ErrNotFound.
func (r *OrganizationRepository) ListMembers(ctx context.Context, organizationID string) ([]domain.Member, error) {
	if _, err := r.GetByID(ctx, organizationID); err != nil {
		return nil, err
	}

	stmt, args, err := r.builder.Select("m.organization_id", "m.user_id", "m.role", "m.created_at", "u.email", "u.name").
		From(table("memberships") + " m").
		Join(table("users") + " u ON u.id = m.user_id").
		Where(squirrel.Eq{"m.organization_id": organizationID}).
		OrderBy("m.created_at", "m.user_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list members sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, wrap("list members", err)
	}
	defer rows.Close()

	members := make([]domain.Member, 0)
	for rows.Next() {
		var (
			member domain.Member
			role   string
		)
		if err := rows.Scan(
			&member.OrganizationID,
			&member.UserID,
			&role,
			&member.CreatedAt,
			&member.Email,
			&member.Name,
		); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		member.Role = domain.Role(role)
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

func (r *OrganizationRepository) insertMembership(m domain.Membership) (string, []any, error) {
	stmt, args, err := r.builder.Insert(table("memberships")).
		Columns("organization_id", "user_id", "role", "created_at").
		Values(m.OrganizationID, m.UserID, string(m.Role), m.CreatedAt).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert membership sql: %w", err)
	}
	return stmt, args, nil
}

var _ port.OrganizationRepository = (*OrganizationRepository)(nil)
