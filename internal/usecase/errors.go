package usecase

import (
	"context"
	"errors"

	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/infra/security"
)

// Error kinds. Every error returned by this package matches exactly one of them via errors.Is.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrUpstreamFailure  = errors.New("upstream failure")
)

// OperationError carries the failing operation, its kind and a caller-safe message.
type OperationError struct {
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *OperationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

// Unwrap exposes both the kind and the underlying cause.
func (e *OperationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the error kind of err; unclassified errors are upstream failures.
func KindOf(err error) error {
	for _, kind := range []error{ErrUnauthorized, ErrNotFound, ErrValidationFailed, ErrUpstreamFailure} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrUpstreamFailure
}

// MessageOf returns the caller-safe message carried by err.
func MessageOf(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		if opErr.Message != "" {
			return opErr.Message
		}
		return opErr.Kind.Error()
	}
	return ErrUpstreamFailure.Error()
}

func newOpError(op string, kind error, message string, cause error) *OperationError {
	return &OperationError{Op: op, Kind: kind, Message: message, Err: cause}
}

// classify maps identity provider and policy errors onto the closed kind set.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err
	}

	var policyErr *security.PasswordValidationError
	switch {
	case errors.As(err, &policyErr):
		return newOpError(op, ErrValidationFailed, policyErr.Message, err)
	case errors.Is(err, port.ErrInvalidCredentials):
		return newOpError(op, ErrUnauthorized, "Invalid email or password", err)
	case errors.Is(err, port.ErrInvitationNotFound):
		return newOpError(op, ErrNotFound, "Invalid or expired invitation", err)
	case errors.Is(err, port.ErrUserNotFound), errors.Is(err, port.ErrAPIKeyNotFound):
		return newOpError(op, ErrNotFound, err.Error(), err)
	case errors.Is(err, port.ErrEmailTaken), errors.Is(err, port.ErrAdminExists), errors.Is(err, port.ErrSlugTaken):
		return newOpError(op, ErrValidationFailed, err.Error(), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newOpError(op, ErrUpstreamFailure, "request cancelled", err)
	}
	return newOpError(op, ErrUpstreamFailure, "identity provider unavailable", err)
}
