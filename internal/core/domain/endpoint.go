package domain

import (
	"strings"
	"time"
)

// Endpoint is a documented API operation that belongs to an organization.
type Endpoint struct {
	ID             string
	OrganizationID string
	Method         string
	Path           string
	Description    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NormalizeMethod returns the canonical upper-case HTTP method.
func NormalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}
