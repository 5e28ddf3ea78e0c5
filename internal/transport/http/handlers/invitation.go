package handlers

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/autodoc-access/internal/transport/http/middleware"
	"github.com/arklim/autodoc-access/internal/usecase"
)

const invalidInvitationText = "Invalid or expired invitation"

var acceptInviteTemplate = template.Must(template.New("accept-invite").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Join {{.Product}}</title>
</head>
<body>
<h1>Accept invitation</h1>
<p>You have been invited to join as <strong>{{.Role}}</strong>.</p>
<form method="post" action="{{.Action}}">
<input type="hidden" name="invitationId" value="{{.InvitationID}}">
<label>Email <input type="email" name="email" value="{{.Email}}" required></label>
<label>Name <input type="text" name="name" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Create account</button>
</form>
</body>
</html>
`))

type acceptInvitePage struct {
	Product      string
	Action       string
	InvitationID string
	Email        string
	Role         string
}

// InvitationHandler exposes invitation issuance and the two-phase acceptance flow.
type InvitationHandler struct {
	invitations *usecase.InvitationService
}

// NewInvitationHandler constructs an InvitationHandler.
func NewInvitationHandler(invitations *usecase.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

// Invite godoc
// @Summary Invite a member
// @Description Creates an invitation into the organization bound to the caller's API key.
// @Tags Invitations
// @Accept json
// @Produce json
// @Security APIKeyAuth
// @Param request body InviteRequest true "Invitation payload"
// @Success 201 {object} InviteResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /autodoc/invite [post]
func (h *InvitationHandler) Invite(c *gin.Context) {
	scope, ok := middleware.GetAccessScope(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "API key is required"))
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid invitation payload"))
		return
	}

	result, err := h.invitations.Invite(c.Request.Context(), scope, usecase.InviteInput{Email: req.Email, Role: req.Role})
	if err != nil {
		respondUsecaseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, InviteResponse{
		Success:      result.Success,
		InvitationID: result.InvitationID,
		InviteURL:    result.InviteURL,
		ExpiresAt:    result.ExpiresAt,
	})
}

// AcceptForm godoc
// @Summary Render the invitation acceptance form
// @Tags Invitations
// @Produce html
// @Param id query string true "Invitation id"
// @Success 200 {string} string "HTML form"
// @Failure 400 {string} string "Invalid or expired invitation"
// @Router /autodoc/accept-invite [get]
func (h *InvitationHandler) AcceptForm(c *gin.Context) {
	inv, err := h.invitations.Lookup(c.Request.Context(), c.Query("id"))
	if err != nil {
		_ = c.Error(err)
		c.String(http.StatusBadRequest, invalidInvitationText)
		return
	}

	var page bytes.Buffer
	if err := acceptInviteTemplate.Execute(&page, acceptInvitePage{
		Product:      "AutoDoc",
		Action:       c.Request.URL.Path,
		InvitationID: inv.ID,
		Email:        inv.Email,
		Role:         string(inv.Role),
	}); err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "failed to render invitation")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", page.Bytes())
}

// Accept godoc
// @Summary Accept an invitation
// @Description Creates the invited principal, records the membership and issues a role-scoped API key. Failures are reported as {success:false, message}.
// @Tags Invitations
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Param request body AcceptInviteRequest true "Acceptance payload"
// @Success 201 {object} AcceptInviteResponse
// @Success 200 {object} FailureResponse
// @Failure 400 {object} FailureResponse
// @Router /autodoc/accept-invite [post]
func (h *InvitationHandler) Accept(c *gin.Context) {
	var req AcceptInviteRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, FailureResponse{Success: false, Message: "invalid acceptance payload"})
		return
	}

	result, err := h.invitations.Accept(c.Request.Context(), usecase.AcceptInviteInput{
		InvitationID: req.InvitationID,
		Password:     req.Password,
		Name:         req.Name,
		Email:        req.Email,
	})
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusOK, FailureResponse{Success: false, Message: usecase.MessageOf(err)})
		return
	}

	c.JSON(http.StatusCreated, AcceptInviteResponse{
		Success:        result.Success,
		APIKey:         result.APIKey,
		Role:           result.Role,
		OrganizationID: result.OrganizationID,
	})
}
