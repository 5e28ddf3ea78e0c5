package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
)

var endpointColumns = []string{"id", "organization_id", "method", "path", "description", "created_at", "updated_at"}

// EndpointRepository implements port.EndpointRepository over PostgreSQL.
type EndpointRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewEndpointRepository constructs an endpoint repository.
func NewEndpointRepository(exec pgExecutor) *EndpointRepository {
	return &EndpointRepository{exec: exec, builder: newBuilder()}
}

// Create registers an endpoint; (organization_id, method, path) is unique.
func (r *EndpointRepository) Create(ctx context.Context, ep domain.Endpoint) error {
	stmt, args, err := r.builder.Insert(table("endpoints")).
		Columns(endpointColumns...).
		Values(ep.ID, ep.OrganizationID, ep.Method, ep.Path, ep.Description, ep.CreatedAt, ep.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert endpoint sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return wrap("insert endpoint", err)
	}
	return nil
}

// ListByOrganization returns the catalog ordered by path then method.
func (r *EndpointRepository) ListByOrganization(ctx context.Context, organizationID string) ([]domain.Endpoint, error) {
	stmt, args, err := r.builder.Select(endpointColumns...).
		From(table("endpoints")).
		Where(squirrel.Eq{"organization_id": organizationID}).
		OrderBy("path", "method").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list endpoints sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, wrap("list endpoints", err)
	}
	defer rows.Close()

	endpoints := make([]domain.Endpoint, 0)
	for rows.Next() {
		var ep domain.Endpoint
		if err := rows.Scan(&ep.ID, &ep.OrganizationID, &ep.Method, &ep.Path, &ep.Description, &ep.CreatedAt, &ep.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		endpoints = append(endpoints, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoints: %w", err)
	}
	return endpoints, nil
}

// UpdateDescription replaces the description of an endpoint owned by the organization.
func (r *EndpointRepository) UpdateDescription(ctx context.Context, organizationID, id, description string, at time.Time) (*domain.Endpoint, error) {
	stmt, args, err := r.builder.Update(table("endpoints")).
		Set("description", description).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id, "organization_id": organizationID}).
		Suffix("RETURNING id, organization_id, method, path, description, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update endpoint sql: %w", err)
	}

	var ep domain.Endpoint
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&ep.ID, &ep.OrganizationID, &ep.Method, &ep.Path, &ep.Description, &ep.CreatedAt, &ep.UpdatedAt,
	); err != nil {
		return nil, wrap("update endpoint description", err)
	}
	return &ep, nil
}

var _ port.EndpointRepository = (*EndpointRepository)(nil)
