package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arklim/autodoc-access/internal/core/port"
)

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// InvitationLock is an in-process port.InvitationLock with per-entry expiry.
type InvitationLock struct {
	mu    sync.Mutex
	held  map[string]lockEntry
	clock func() time.Time
}

// NewInvitationLock returns an empty lock table.
func NewInvitationLock() *InvitationLock {
	return &InvitationLock{held: make(map[string]lockEntry), clock: time.Now}
}

// TryLock acquires the lock for invitationID unless a live holder exists.
func (l *InvitationLock) TryLock(_ context.Context, invitationID string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if entry, ok := l.held[invitationID]; ok && now.Before(entry.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.held[invitationID] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Unlock releases the lock if token still owns it.
func (l *InvitationLock) Unlock(_ context.Context, invitationID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.held[invitationID]; ok && entry.token == token {
		delete(l.held, invitationID)
	}
	return nil
}

var _ port.InvitationLock = (*InvitationLock)(nil)
