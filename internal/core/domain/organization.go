package domain

import (
	"strings"
	"time"
	"unicode"
)

// Organization groups principals under a single owner.
type Organization struct {
	ID        string
	Name      string
	Slug      string
	OwnerID   string
	CreatedAt time.Time
}

// Membership relates a user to an organization with a role.
type Membership struct {
	OrganizationID string
	UserID         string
	Role           Role
	CreatedAt      time.Time
}

// Member is a membership joined with the member's user record.
type Member struct {
	Membership
	Email string
	Name  string
}

// Slugify lowercases name and collapses every Unicode whitespace run into a single hyphen.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	inSpace := false
	for _, r := range strings.ToLower(name) {
		if isSlugSpace(r) {
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// isSlugSpace also treats the byte order mark as whitespace.
func isSlugSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}
