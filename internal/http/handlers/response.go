// Package handlers implements the HTTP endpoints of the ordering and stock
// API. Handlers are transport-thin: they bind and validate input, call a
// service, and translate the outcome into a JSON response or a uniform
// ErrorResponse.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "session_not_found",
//	  "message": "no active session for table"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Fredcx/ezmenu/internal/http/middleware"
	"github.com/Fredcx/ezmenu/internal/services"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID for correlating client errors with server logs
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Human-readable message
	Message string `json:"message" example:"resource not found"`
}

// fail aborts with an ErrorResponse. 5xx responses are logged through the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported form of fail for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }

// failErr maps a service error onto status and code. Unknown errors become
// a 500 whose detail is only logged.
func failErr(c *gin.Context, err error) {
	var pe *services.PersistenceError
	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrIngredientNotFound):
		fail(c, http.StatusNotFound, ErrCodeIngredientNotFound, err.Error())
	case errors.Is(err, services.ErrMenuItemNotFound):
		fail(c, http.StatusNotFound, ErrCodeMenuItemNotFound, err.Error())
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeSessionNotFound, err.Error())
	case errors.Is(err, services.ErrLineNotFound):
		fail(c, http.StatusNotFound, ErrCodeLineNotFound, err.Error())
	case errors.Is(err, services.ErrOrderNotFound):
		fail(c, http.StatusNotFound, ErrCodeOrderNotFound, err.Error())
	case errors.Is(err, services.ErrIngredientExists):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, err.Error())
	case errors.As(err, &pe):
		middleware.LoggerFrom(c).Warn().Err(pe.Err).Str("op", pe.Op).Msg("write not persisted")
		if pe.Op == "send" {
			c.Header("Retry-After", "1")
			fail(c, http.StatusServiceUnavailable, ErrCodeOrderNotSent, "order not sent, try again")
			return
		}
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, pe.Op+" failed, try again")
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}
