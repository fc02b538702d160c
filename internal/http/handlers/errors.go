package handlers

import (
	"errors"
	"net/http"

	"busclient/internal/domain"
	"busclient/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

const genericNetworkMessage = "The booking service is unreachable. Please try again."

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	})
}

// RespondDomainError maps domain errors to HTTP responses.
// Auth and rejection messages come from the backend and are passed through verbatim.
func RespondDomainError(c *gin.Context, err error) {
	respondDomainError(c, err, nil)
}

func respondDomainError(c *gin.Context, err error, details any) {
	switch {
	case domain.IsValidation(err):
		var many domain.ValidationErrors
		if errors.As(err, &many) && details == nil {
			details = many.Fields()
		}
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), details)
	case domain.IsAuth(err):
		respondError(c, http.StatusUnauthorized, "auth_error", err.Error(), details)
	case domain.IsRejection(err):
		respondError(c, http.StatusUnprocessableEntity, "rejected", err.Error(), details)
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error(), details)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), details)
	case domain.IsNetwork(err):
		respondError(c, http.StatusServiceUnavailable, "network_error", genericNetworkMessage, details)
	default:
		respondError(c, http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again.", details)
	}
}

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "Request body is empty", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "Invalid request payload", err.Error())
		return false
	}
	return true
}
