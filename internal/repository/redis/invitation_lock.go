package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arklim/autodoc-access/internal/core/port"
)

// releaseScript deletes the lock only while the caller's token still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// InvitationLock implements port.InvitationLock with SET NX and a token-checked release.
type InvitationLock struct {
	client    *redis.Client
	keyPrefix string
}

// NewInvitationLock returns a lock whose keys live under keyPrefix.
func NewInvitationLock(client *redis.Client, keyPrefix string) *InvitationLock {
	return &InvitationLock{client: client, keyPrefix: keyPrefix}
}

// TryLock acquires the lock for invitationID for ttl.
func (l *InvitationLock) TryLock(ctx context.Context, invitationID string, ttl time.Duration) (string, bool, error) {
	if invitationID == "" {
		return "", false, errors.New("invitation id is required")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(invitationID), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock releases the lock if token still owns it.
func (l *InvitationLock) Unlock(ctx context.Context, invitationID, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(invitationID)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release lock: %w", err)
	}
	return nil
}

func (l *InvitationLock) key(invitationID string) string {
	return fmt.Sprintf("%s:invitation-lock:%s", l.keyPrefix, invitationID)
}

var _ port.InvitationLock = (*InvitationLock)(nil)
