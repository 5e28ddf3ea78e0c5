package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/autodoc-access/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// An empty Message falls back to the caller-safe message carried by the error.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// usecaseErrorCases maps the usecase error kinds onto HTTP statuses.
var usecaseErrorCases = []ErrorCase{
	{Err: usecase.ErrUnauthorized, Status: http.StatusUnauthorized},
	{Err: usecase.ErrNotFound, Status: http.StatusNotFound},
	{Err: usecase.ErrValidationFailed, Status: http.StatusBadRequest},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, messageOr(cs.Message, err)))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, messageOr(fallbackMessage, err)))
}

// respondUsecaseError writes err using the usecase kind mapping; unclassified errors become 502.
func respondUsecaseError(c *gin.Context, err error) {
	_ = c.Error(err)
	RespondWithMappedError(c, err, usecaseErrorCases, http.StatusBadGateway, "")
}

func messageOr(message string, err error) string {
	if message != "" {
		return message
	}
	return usecase.MessageOf(err)
}
