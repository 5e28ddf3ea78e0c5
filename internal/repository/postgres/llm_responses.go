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

var llmResponseColumns = []string{"id", "organization_id", "user_id", "prompt", "response", "model", "created_at", "updated_at"}

const llmResponseReturning = "RETURNING id, organization_id, user_id, prompt, response, model, created_at, updated_at"

// LLMResponseRepository implements port.LLMResponseRepository over PostgreSQL.
type LLMResponseRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLLMResponseRepository constructs a response repository.
func NewLLMResponseRepository(exec pgExecutor) *LLMResponseRepository {
	return &LLMResponseRepository{exec: exec, builder: newBuilder()}
}

// Create stores a response.
func (r *LLMResponseRepository) Create(ctx context.Context, resp domain.LLMResponse) error {
	var userID any
	if resp.UserID != "" {
		userID = resp.UserID
	}

	stmt, args, err := r.builder.Insert(table("llm_responses")).
		Columns(llmResponseColumns...).
		Values(resp.ID, resp.OrganizationID, userID, resp.Prompt, resp.Response, resp.Model, resp.CreatedAt, resp.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert llm response sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return wrap("insert llm response", err)
	}
	return nil
}

// List returns the newest responses first.
func (r *LLMResponseRepository) List(ctx context.Context, organizationID string, limit int) ([]domain.LLMResponse, error) {
	query := r.builder.Select(llmResponseColumns...).
		From(table("llm_responses")).
		Where(squirrel.Eq{"organization_id": organizationID}).
		OrderBy("created_at DESC", "id")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list llm responses sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, wrap("list llm responses", err)
	}
	defer rows.Close()

	responses := make([]domain.LLMResponse, 0)
	for rows.Next() {
		resp, err := scanLLMResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan llm response: %w", err)
		}
		responses = append(responses, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate llm responses: %w", err)
	}
	return responses, nil
}

// GetByID returns one response scoped to the organization.
func (r *LLMResponseRepository) GetByID(ctx context.Context, organizationID, id string) (*domain.LLMResponse, error) {
	stmt, args, err := r.builder.Select(llmResponseColumns...).
		From(table("llm_responses")).
		Where(squirrel.Eq{"id": id, "organization_id": organizationID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select llm response sql: %w", err)
	}

	resp, err := scanLLMResponse(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, wrap("scan llm response", err)
	}
	return &resp, nil
}

// Update applies the non-nil patch fields.
func (r *LLMResponseRepository) Update(ctx context.Context, organizationID, id string, patch domain.LLMResponsePatch, at time.Time) (*domain.LLMResponse, error) {
	query := r.builder.Update(table("llm_responses")).Set("updated_at", at)
	if patch.Prompt != nil {
		query = query.Set("prompt", *patch.Prompt)
	}
	if patch.Response != nil {
		query = query.Set("response", *patch.Response)
	}
	if patch.Model != nil {
		query = query.Set("model", *patch.Model)
	}

	stmt, args, err := query.
		Where(squirrel.Eq{"id": id, "organization_id": organizationID}).
		Suffix(llmResponseReturning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update llm response sql: %w", err)
	}

	resp, err := scanLLMResponse(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, wrap("update llm response", err)
	}
	return &resp, nil
}

// Delete removes a response scoped to the organization.
func (r *LLMResponseRepository) Delete(ctx context.Context, organizationID, id string) error {
	stmt, args, err := r.builder.Delete(table("llm_responses")).
		Where(squirrel.Eq{"id": id, "organization_id": organizationID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete llm response sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return wrap("delete llm response", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanLLMResponse(row pgx.Row) (domain.LLMResponse, error) {
	var (
		resp   domain.LLMResponse
		userID *string
	)
	if err := row.Scan(
		&resp.ID,
		&resp.OrganizationID,
		&userID,
		&resp.Prompt,
		&resp.Response,
		&resp.Model,
		&resp.CreatedAt,
		&resp.UpdatedAt,
	); err != nil {
		return domain.LLMResponse{}, err
	}
	if userID != nil {
		resp.UserID = *userID
	}
	return resp, nil
}

var _ port.LLMResponseRepository = (*LLMResponseRepository)(nil)
