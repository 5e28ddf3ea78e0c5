package domain

import (
	"slices"
	"sort"
	"time"
)

const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"

	// ResourceOrganization scopes keys to the organization named in their metadata.
	ResourceOrganization = "organization"

	MetadataOrganizationID = "organizationId"
	MetadataRole           = "role"
)

// Permissions maps a resource to the actions granted on it.
type Permissions map[string][]string

// RequirePermission builds a single-resource permission requirement.
func RequirePermission(resource string, actions ...string) Permissions {
	if len(actions) == 0 {
		return Permissions{}
	}
	return Permissions{resource: append([]string(nil), actions...)}
}

// Allows reports whether every required resource/action pair is granted.
// An empty requirement is always satisfied.
func (p Permissions) Allows(required Permissions) bool {
	for resource, actions := range required {
		granted := p[resource]
		for _, action := range actions {
			if !slices.Contains(granted, action) {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy with sorted action lists.
func (p Permissions) Clone() Permissions {
	if p == nil {
		return nil
	}
	out := make(Permissions, len(p))
	for resource, actions := range p {
		copied := append([]string(nil), actions...)
		sort.Strings(copied)
		out[resource] = copied
	}
	return out
}

// PermissionsForRole returns the organization permission set granted to role.
func PermissionsForRole(role Role) Permissions {
	if role.Elevated() {
		return Permissions{ResourceOrganization: {ActionRead, ActionWrite, ActionDelete}}
	}
	return Permissions{ResourceOrganization: {ActionRead}}
}

// APIKey is a stored credential. Only the hash of the secret is persisted.
type APIKey struct {
	ID          string
	UserID      string
	Name        string
	Prefix      string
	KeyHash     string
	Permissions Permissions
	Metadata    map[string]string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	RevokedAt   *time.Time
	LastUsedAt  *time.Time
}

// OrganizationID returns the organization bound through key metadata.
func (k APIKey) OrganizationID() string {
	return k.Metadata[MetadataOrganizationID]
}

// Role returns the role recorded in key metadata.
func (k APIKey) Role() Role {
	return Role(k.Metadata[MetadataRole])
}

// Expired reports whether the key carries an expiry that has passed.
func (k APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// IssuedAPIKey carries the plaintext secret returned exactly once at creation.
type IssuedAPIKey struct {
	Key    APIKey
	Secret string
}

// Verification failure reasons.
const (
	VerifyReasonMissing      = "missing_key"
	VerifyReasonUnknown      = "invalid_key"
	VerifyReasonRevoked      = "revoked"
	VerifyReasonExpired      = "expired"
	VerifyReasonInsufficient = "insufficient_permissions"
)

// APIKeyVerification is the outcome of checking a secret against a requirement.
type APIKeyVerification struct {
	Valid  bool
	Key    *APIKey
	Reason string
}
