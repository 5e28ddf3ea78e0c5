package domain

import "time"

// Role tags principals and memberships.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
	RoleUser   Role = "user"
)

// Elevated reports whether the role belongs to the administrative set.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleOwner
}

// Valid reports whether the role is one of the known role tags.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOwner, RoleMember, RoleUser:
		return true
	}
	return false
}

// User mirrors the persisted representation of a principal.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	PasswordHash string
	// InvitationID is set for principals created by accepting an invitation.
	InvitationID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SystemAdmin reports whether the user holds the single registration-assigned admin slot.
func (u User) SystemAdmin() bool {
	return u.Role == RoleAdmin && u.InvitationID == nil
}

// Sanitized returns a copy of the user without credential material.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}

// Session is an issued sign-in session. Token is only populated at issuance.
type Session struct {
	ID        string
	UserID    string
	Token     string
	TokenHash string
	IP        *string
	UserAgent *string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsActive reports whether the session is still valid at the supplied moment.
func (s Session) IsActive(at time.Time) bool {
	return s.ExpiresAt.After(at)
}
