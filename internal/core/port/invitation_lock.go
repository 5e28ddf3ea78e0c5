package port

import (
	"context"
	"time"
)

// InvitationLock serializes acceptance attempts for the same invitation.
// TryLock returns ok=false when another holder owns the lock.
type InvitationLock interface {
	TryLock(ctx context.Context, invitationID string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, invitationID, token string) error
}
