package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness or state constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
)

// Constraint names shared by every backend.
const (
	ConstraintUserEmail        = "users_email_key"
	ConstraintSingleAdmin      = "users_single_admin"
	ConstraintOrganizationSlug = "organizations_slug_key"
	ConstraintMembership       = "memberships_pkey"
)

// ConstraintError reports which named constraint rejected a write.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("repository: constraint %s violated: %v", e.Constraint, e.Err)
	}
	return fmt.Sprintf("repository: constraint %s violated", e.Constraint)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrConflict) match any constraint violation.
func (e *ConstraintError) Is(target error) bool {
	return target == ErrConflict
}

// IsConstraint reports whether err is a violation of the named constraint.
func IsConstraint(err error, name string) bool {
	var cErr *ConstraintError
	return errors.As(err, &cErr) && cErr.Constraint == name
}
