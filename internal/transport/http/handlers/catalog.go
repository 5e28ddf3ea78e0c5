package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/autodoc-access/internal/transport/http/middleware"
	"github.com/arklim/autodoc-access/internal/usecase"
)

// CatalogHandler exposes organization members and the endpoint catalog.
type CatalogHandler struct {
	catalog *usecase.CatalogService
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(catalog *usecase.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Members godoc
// @Summary List organization members
// @Tags Catalog
// @Produce json
// @Security APIKeyAuth
// @Success 200 {object} MembersResponse
// @Failure 401 {object} ErrorResponse
// @Router /autodoc/members [get]
func (h *CatalogHandler) Members(c *gin.Context) {
	scope, ok := middleware.GetAccessScope(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "API key is required"))
		return
	}

	members, err := h.catalog.ListMembers(c.Request.Context(), scope)
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, MembersResponse{Success: true, Members: toMemberResponses(members)})
}

// Endpoints godoc
// @Summary List catalogued endpoints
// @Tags Catalog
// @Produce json
// @Security APIKeyAuth
// @Success 200 {object} EndpointsResponse
// @Failure 401 {object} ErrorResponse
// @Router /autodoc/endpoints [get]
func (h *CatalogHandler) Endpoints(c *gin.Context) {
	scope, ok := middleware.GetAccessScope(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "API key is required"))
		return
	}

	endpoints, err := h.catalog.ListEndpoints(c.Request.Context(), scope)
	if err != nil {
		respondUsecaseError(c, err)
		return
	}

	out := make([]EndpointResponse, 0, len(endpoints))
	for _, e := range endpoints {
		out = append(out, toEndpointResponse(e))
	}
	c.JSON(http.StatusOK, EndpointsResponse{Success: true, Endpoints: out})
}

// RegisterEndpoint godoc
// @Summary Register an endpoint
// @Tags Catalog
// @Accept json
// @Produce json
// @Security APIKeyAuth
// @Param request body EndpointRequest true "Endpoint"
// @Success 201 {object} EndpointResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /autodoc/endpoints [post]
func (h *CatalogHandler) RegisterEndpoint(c *gin.Context) {
	scope, ok := middleware.GetAccessScope(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "API key is required"))
		return
	}

	var req EndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid endpoint payload"))
		return
	}

	endpoint, err := h.catalog.RegisterEndpoint(c.Request.Context(), scope, usecase.RegisterEndpointInput{
		Method:      req.Method,
		Path:        req.Path,
		Description: req.Description,
	})
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toEndpointResponse(endpoint))
}

// UpdateDescription godoc
// @Summary Update an endpoint description
// @Tags Catalog
// @Accept json
// @Produce json
// @Security APIKeyAuth
// @Param id path string true "Endpoint id"
// @Param request body DescriptionRequest true "Description"
// @Success 200 {object} EndpointResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /autodoc/endpoints/{id}/description [post]
func (h *CatalogHandler) UpdateDescription(c *gin.Context) {
	scope, ok := middleware.GetAccessScope(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "API key is required"))
		return
	}

	var req DescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid description payload"))
		return
	}

	endpoint, err := h.catalog.UpdateDescription(c.Request.Context(), scope, c.Param("id"), usecase.UpdateDescriptionInput{
		Description: req.Description,
	})
	if err != nil {
		respondUsecaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEndpointResponse(endpoint))
}
