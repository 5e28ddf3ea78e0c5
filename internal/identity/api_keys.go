package identity

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/infra/security"
	"github.com/arklim/autodoc-access/internal/repository"
)

// CreateAPIKey issues a new secret; only its SHA-256 hash is stored.
func (p *Provider) CreateAPIKey(ctx context.Context, input port.NewAPIKey) (domain.IssuedAPIKey, error) {
	secret, prefix, err := security.NewAPIKeySecret()
	if err != nil {
		return domain.IssuedAPIKey{}, fmt.Errorf("generate api key: %w", err)
	}

	now := p.now()
	key := domain.APIKey{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		Name:        input.Name,
		Prefix:      prefix,
		KeyHash:     security.HashToken(secret),
		Permissions: input.Permissions.Clone(),
		Metadata:    maps.Clone(input.Metadata),
		CreatedAt:   now,
	}
	if key.Metadata == nil {
		key.Metadata = map[string]string{}
	}
	if input.ExpiresIn > 0 {
		expiresAt := now.Add(input.ExpiresIn)
		key.ExpiresAt = &expiresAt
	}

	if err := p.repos.APIKeys.Create(ctx, key); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.IssuedAPIKey{}, port.ErrUserNotFound
		}
		return domain.IssuedAPIKey{}, fmt.Errorf("create api key: %w", err)
	}

	key.KeyHash = ""
	return domain.IssuedAPIKey{Key: key, Secret: secret}, nil
}

// VerifyAPIKey checks the secret against the stored hash, its lifecycle and the required permissions.
// An unknown, revoked, expired or under-privileged key yields Valid=false and a nil error.
func (p *Provider) VerifyAPIKey(ctx context.Context, secret string, required domain.Permissions) (domain.APIKeyVerification, error) {
	if secret == "" {
		return domain.APIKeyVerification{Reason: domain.VerifyReasonMissing}, nil
	}
	if !security.LooksLikeAPIKey(secret) {
		return domain.APIKeyVerification{Reason: domain.VerifyReasonUnknown}, nil
	}

	key, err := p.repos.APIKeys.GetByHash(ctx, security.HashToken(secret))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.APIKeyVerification{Reason: domain.VerifyReasonUnknown}, nil
		}
		return domain.APIKeyVerification{}, fmt.Errorf("load api key: %w", err)
	}

	now := p.now()
	switch {
	case key.RevokedAt != nil:
		return domain.APIKeyVerification{Reason: domain.VerifyReasonRevoked}, nil
	case key.Expired(now):
		return domain.APIKeyVerification{Reason: domain.VerifyReasonExpired}, nil
	case !key.Permissions.Allows(required):
		return domain.APIKeyVerification{Reason: domain.VerifyReasonInsufficient}, nil
	}

	// Last-used tracking is best effort.
	if err := p.repos.APIKeys.TouchLastUsed(ctx, key.ID, now); err != nil {
		p.logger.Warn("record api key last use failed",
			zap.String("key_id", key.ID),
			zap.String("key_prefix", key.Prefix),
			zap.Error(err),
		)
	}
	usedAt := now
	key.LastUsedAt = &usedAt
	key.KeyHash = ""

	return domain.APIKeyVerification{Valid: true, Key: key}, nil
}

// RevokeAPIKey disables a credential.
func (p *Provider) RevokeAPIKey(ctx context.Context, id string) error {
	if err := p.repos.APIKeys.Revoke(ctx, id, p.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return port.ErrAPIKeyNotFound
		}
		return fmt.Errorf("revoke api key: %w", err)
	}
	return nil
}
