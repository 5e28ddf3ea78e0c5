package domain

import "time"

// InvitationStatus enumerates the invitation lifecycle states.
type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusExpired  InvitationStatus = "expired"
	InvitationStatusRevoked  InvitationStatus = "revoked"
)

// Invitation is a single-use offer to join an organization under a role.
type Invitation struct {
	ID             string
	OrganizationID string
	Email          string
	Role           Role
	InviterID      string
	Status         InvitationStatus
	CreatedAt      time.Time
	ExpiresAt      time.Time
	AcceptedAt     *time.Time
	AcceptedUserID *string
}

// Open reports whether the invitation can still be accepted at now.
func (i Invitation) Open(now time.Time) bool {
	if i.Status != InvitationStatusPending {
		return false
	}
	if !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt) {
		return false
	}
	return true
}

// InvitableRole reports whether role may be offered through an invitation.
func InvitableRole(role Role) bool {
	return role == RoleAdmin || role == RoleMember
}
