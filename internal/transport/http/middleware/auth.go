package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/usecase"
)

const (
	// APIKeyHeader carries the API key secret.
	APIKeyHeader = "X-API-Key"
	// AccessScopeKey is the context key for the verified API key scope.
	AccessScopeKey = "access_scope"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// APIKeyAuthorizer verifies a presented secret against a required permission set.
type APIKeyAuthorizer interface {
	Authorize(ctx context.Context, operation, secret string, required domain.Permissions) (usecase.AccessScope, error)
}

// StatusFor maps a usecase error kind onto its HTTP status.
func StatusFor(err error) int {
	switch kind := usecase.KindOf(err); {
	case errors.Is(kind, usecase.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(kind, usecase.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, usecase.ErrValidationFailed):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

// ExtractAPIKey reads the key from X-API-Key, falling back to Authorization with an optional Bearer prefix.
func ExtractAPIKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader(APIKeyHeader)); key != "" {
		return key
	}

	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if scheme, token, ok := strings.Cut(authHeader, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return authHeader
}

// RequireAPIKey verifies the caller's API key for operation and stores the resolved scope on the context.
func RequireAPIKey(authorizer APIKeyAuthorizer, operation string, required domain.Permissions) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, err := authorizer.Authorize(c.Request.Context(), operation, ExtractAPIKey(c), required)
		if err != nil {
			c.AbortWithStatusJSON(StatusFor(err), newErrorResponse(c, usecase.MessageOf(err)))
			return
		}

		c.Set(AccessScopeKey, scope)
		c.Set(UserIDKey, scope.UserID)
		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = scope.UserID
			reqCtx.OrganizationID = scope.OrganizationID
		}

		c.Next()
	}
}

// GetAccessScope returns the scope stored by RequireAPIKey.
func GetAccessScope(c *gin.Context) (usecase.AccessScope, bool) {
	value, exists := c.Get(AccessScopeKey)
	if !exists {
		return usecase.AccessScope{}, false
	}
	scope, ok := value.(usecase.AccessScope)
	return scope, ok
}
