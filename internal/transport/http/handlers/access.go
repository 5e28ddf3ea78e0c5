package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/autodoc-access/internal/usecase"
)

// AccessHandler exposes registration and login.
type AccessHandler struct {
	accounts *usecase.AccountService
}

// NewAccessHandler constructs an AccessHandler.
func NewAccessHandler(accounts *usecase.AccountService) *AccessHandler {
	return &AccessHandler{accounts: accounts}
}

// Register godoc
// @Summary Register an account
// @Description Creates a principal according to the configured registration strategy. Organization owners receive an API key. Failures are reported as {success:false, message}.
// @Tags Access
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration payload"
// @Success 201 {object} RegisterResponse
// @Success 200 {object} FailureResponse
// @Failure 400 {object} FailureResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /autodoc/register [post]
func (h *AccessHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, FailureResponse{Success: false, Message: "invalid registration payload"})
		return
	}

	name := req.Name
	if strings.TrimSpace(name) == "" {
		name = req.ProjectName
	}

	result, err := h.accounts.Register(c.Request.Context(), usecase.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     name,
	})
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusOK, FailureResponse{Success: false, Message: result.Message})
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Success:        true,
		Message:        result.Message,
		Role:           result.Role,
		UserID:         result.UserID,
		OrganizationID: result.OrganizationID,
		APIKey:         result.APIKey,
	})
}

// Login godoc
// @Summary Sign in
// @Description Authenticates with email and password and returns a session token.
// @Tags Access
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /autodoc/login [post]
func (h *AccessHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	ip := c.ClientIP()
	userAgent := c.Request.UserAgent()
	result, err := h.accounts.Login(c.Request.Context(), usecase.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        optionalString(ip),
		UserAgent: optionalString(userAgent),
	})
	if err != nil {
		respondUsecaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success:   result.Success,
		Message:   result.Message,
		Session:   result.Session,
		ExpiresAt: result.ExpiresAt,
		User: UserSummary{
			ID:    result.User.ID,
			Email: result.User.Email,
			Name:  result.User.Name,
			Role:  result.User.Role,
		},
	})
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
