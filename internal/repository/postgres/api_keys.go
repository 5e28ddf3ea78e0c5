package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/repository"
)

var apiKeyColumns = []string{
	"id",
	"user_id",
	"name",
	"prefix",
	"key_hash",
	"permissions",
	"metadata",
	"created_at",
	"expires_at",
	"revoked_at",
	"last_used_at",
}

// APIKeyRepository implements port.APIKeyRepository over PostgreSQL.
type APIKeyRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAPIKeyRepository constructs an API key repository.
func NewAPIKeyRepository(exec pgExecutor) *APIKeyRepository {
	return &APIKeyRepository{exec: exec, builder: newBuilder()}
}

// Create inserts a hashed credential; permissions and metadata are stored as JSONB.
func (r *APIKeyRepository) Create(ctx context.Context, key domain.APIKey) error {
	permissions, err := marshalJSON(key.Permissions, "{}")
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	metadata, err := marshalJSON(key.Metadata, "{}")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	stmt, args, err := r.builder.Insert(table("api_keys")).
		Columns(apiKeyColumns...).
		Values(
			key.ID,
			key.UserID,
			key.Name,
			key.Prefix,
			key.KeyHash,
			permissions,
			metadata,
			key.CreatedAt,
			key.ExpiresAt,
			key.RevokedAt,
			key.LastUsedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert api key sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return wrap("insert api key", err)
	}
	return nil
}

// GetByHash looks a credential up by the SHA-256 hash of its secret.
func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	stmt, args, err := r.builder.Select(apiKeyColumns...).
		From(table("api_keys")).
		Where(squirrel.Eq{"key_hash": keyHash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select api key sql: %w", err)
	}

	var (
		key                   domain.APIKey
		permissions, metadata []byte
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&key.ID,
		&key.UserID,
		&key.Name,
		&key.Prefix,
		&key.KeyHash,
		&permissions,
		&metadata,
		&key.CreatedAt,
		&key.ExpiresAt,
		&key.RevokedAt,
		&key.LastUsedAt,
	); err != nil {
		return nil, wrap("scan api key", err)
	}

	if err := unmarshalJSON(permissions, &key.Permissions); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	if err := unmarshalJSON(metadata, &key.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &key, nil
}

// Revoke marks a credential revoked; an already revoked key keeps its original timestamp.
func (r *APIKeyRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update(table("api_keys")).
		Set("revoked_at", squirrel.Expr("COALESCE(revoked_at, ?)", at)).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke api key sql: %w", err)
	}
	return r.execOne(ctx, "revoke api key", stmt, args)
}

// TouchLastUsed records the last successful verification time.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update(table("api_keys")).
		Set("last_used_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch api key sql: %w", err)
	}
	return r.execOne(ctx, "touch api key", stmt, args)
}

func (r *APIKeyRepository) execOne(ctx context.Context, action, stmt string, args []any) error {
	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return wrap(action, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func marshalJSON(value any, empty string) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(payload) == "null" {
		return []byte(empty), nil
	}
	return payload, nil
}

func unmarshalJSON(payload []byte, target any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, target)
}

var _ port.APIKeyRepository = (*APIKeyRepository)(nil)
