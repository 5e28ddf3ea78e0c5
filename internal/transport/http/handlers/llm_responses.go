package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arklim/autodoc-access/internal/transport/http/middleware"
	"github.com/arklim/autodoc-access/internal/usecase"
)

// LLMResponseHandler exposes CRUD over stored model responses.
type LLMResponseHandler struct {
	responses *usecase.LLMResponseService
}

// NewLLMResponseHandler constructs an LLMResponseHandler.
func NewLLMResponseHandler(responses *usecase.LLMResponseService) *LLMResponseHandler {
	return &LLMResponseHandler{responses: responses}
}

// Create godoc
// @Summary Store a model response
// @Tags LLMResponses
// @Accept json
// @Produce json
// @Security APIKeyAuth
// @Param request body LLMResponseRequest true "Response"
// @Success 201 {object} LLMResponseView
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /llm-responses [post]
func (h *LLMResponseHandler) Create(c *gin.Context) {
	scope, ok := middleware.GetAccessScope(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "API key is required"))
		return
	}

	var req LLMResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid llm response payload"))
		return
	}

	created, err := h.responses.Create(c.Request.Context(), scope, usecase.CreateLLMResponseInput{
		Prompt:   req.Prompt,
		Response: req.Response,
		Model:    req.Model,
	})
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toLLMResponseView(created))
}

// List godoc
// @Summary List stored model responses
// @Tags LLMResponses
// @Produce json
// @Security APIKeyAuth
// @Param limit query int false "Maximum number of items"
// @Success 200 {object} LLMResponseList
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /llm-responses [get]
func (h *LLMResponseHandler) List(c *gin.Context) {
	scope, ok := middleware.GetAccessScope(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "API key is required"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	items, err := h.responses.List(c.Request.Context(), scope, limit)
	if err != nil {
		respondUsecaseError(c, err)
		return
	}

	views := make([]LLMResponseView, 0, len(items))
	for _, item := range items {
		views = append(views, toLLMResponseView(item))
	}
	c.JSON(http.StatusOK, LLMResponseList{Items: views})
}

// Get godoc
// @Summary Get a stored model response
// @Tags LLMResponses
// @Produce json
// @Security APIKeyAuth
// @Param id path string true "Response id"
// @Success 200 {object} LLMResponseView
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /llm-responses/{id} [get]
func (h *LLMResponseHandler) Get(c *gin.Context) {
	scope, ok := middleware.GetAccessScope(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "API key is required"))
		return
	}

	item, err := h.responses.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLLMResponseView(item))
}

// Update godoc
// @Summary Update a stored model response
// @Tags LLMResponses
// @Accept json
// @Produce json
// @Security APIKeyAuth
// @Param id path string true "Response id"
// @Param request body LLMResponsePatchRequest true "Fields to replace"
// @Success 200 {object} LLMResponseView
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /llm-responses/{id} [patch]
func (h *LLMResponseHandler) Update(c *gin.Context) {
	scope, ok := middleware.GetAccessScope(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "API key is required"))
		return
	}

	var req LLMResponsePatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid llm response payload"))
		return
	}

	updated, err := h.responses.Update(c.Request.Context(), scope, c.Param("id"), usecase.UpdateLLMResponseInput{
		Prompt:   req.Prompt,
		Response: req.Response,
		Model:    req.Model,
	})
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLLMResponseView(updated))
}

// Delete godoc
// @Summary Delete a stored model response
// @Tags LLMResponses
// @Security APIKeyAuth
// @Param id path string true "Response id"
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /llm-responses/{id} [delete]
func (h *LLMResponseHandler) Delete(c *gin.Context) {
	scope, ok := middleware.GetAccessScope(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "API key is required"))
		return
	}

	if err := h.responses.Delete(c.Request.Context(), scope, c.Param("id")); err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
