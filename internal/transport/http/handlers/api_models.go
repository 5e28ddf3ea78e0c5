package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/autodoc-access/internal/core/domain"
	"github.com/arklim/autodoc-access/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// FailureResponse is the structured failure body of registration and invitation acceptance.
type FailureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse describes service health.
type HealthResponse struct {
	Status    string            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// RegisterRequest is the registration payload. ProjectName is accepted as an alias for Name.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	ProjectName string `json:"projectName"`
}

// RegisterResponse is returned when registration succeeds.
type RegisterResponse struct {
	Success        bool        `json:"success"`
	Message        string      `json:"message"`
	Role           domain.Role `json:"role"`
	UserID         string      `json:"userId,omitempty"`
	OrganizationID string      `json:"organizationId,omitempty"`
	APIKey         string      `json:"apiKey,omitempty"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserSummary is the principal view returned on login.
type UserSummary struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  domain.Role `json:"role"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Session   string      `json:"session"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      UserSummary `json:"user"`
}

// InviteRequest is the invitation payload.
type InviteRequest struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// InviteResponse carries the created invitation and its accept link.
type InviteResponse struct {
	Success      bool      `json:"success"`
	InvitationID string    `json:"invitationId"`
	InviteURL    string    `json:"inviteUrl"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// AcceptInviteRequest is the invitation acceptance payload; form posts use the same field names.
type AcceptInviteRequest struct {
	InvitationID string `json:"invitationId" form:"invitationId"`
	Password     string `json:"password" form:"password"`
	Name         string `json:"name" form:"name"`
	Email        string `json:"email" form:"email"`
}

// AcceptInviteResponse carries the API key issued to the new member.
type AcceptInviteResponse struct {
	Success        bool        `json:"success"`
	APIKey         string      `json:"apiKey"`
	Role           domain.Role `json:"role"`
	OrganizationID string      `json:"organizationId"`
}

// MemberResponse describes an organization member.
type MemberResponse struct {
	UserID   string      `json:"userId"`
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
	JoinedAt time.Time   `json:"joinedAt"`
}

// MembersResponse lists organization members.
type MembersResponse struct {
	Success bool             `json:"success"`
	Members []MemberResponse `json:"members"`
}

// EndpointRequest registers an endpoint in the catalog.
type EndpointRequest struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// DescriptionRequest replaces an endpoint description.
type DescriptionRequest struct {
	Description string `json:"description"`
}

// EndpointResponse describes a catalogued endpoint.
type EndpointResponse struct {
	ID          string    `json:"id"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// EndpointsResponse lists catalogued endpoints.
type EndpointsResponse struct {
	Success   bool               `json:"success"`
	Endpoints []EndpointResponse `json:"endpoints"`
}

// LLMResponseRequest creates a stored model response.
type LLMResponseRequest struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
	Model    string `json:"model"`
}

// LLMResponsePatchRequest updates fields of a stored model response.
type LLMResponsePatchRequest struct {
	Prompt   *string `json:"prompt"`
	Response *string `json:"response"`
	Model    *string `json:"model"`
}

// LLMResponseView describes a stored model response.
type LLMResponseView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LLMResponseList lists stored model responses.
type LLMResponseList struct {
	Items []LLMResponseView `json:"items"`
}

func toMemberResponses(members []domain.Member) []MemberResponse {
	out := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, MemberResponse{
			UserID:   m.UserID,
			Email:    m.Email,
			Name:     m.Name,
			Role:     m.Role,
			JoinedAt: m.CreatedAt,
		})
	}
	return out
}

func toEndpointResponse(e domain.Endpoint) EndpointResponse {
	return EndpointResponse{
		ID:          e.ID,
		Method:      e.Method,
		Path:        e.Path,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toLLMResponseView(r domain.LLMResponse) LLMResponseView {
	return LLMResponseView{
		ID:        r.ID,
		UserID:    r.UserID,
		Prompt:    r.Prompt,
		Response:  r.Response,
		Model:     r.Model,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
