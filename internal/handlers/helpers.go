package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"obogportal/internal/middleware"
	"obogportal/internal/models"
	"obogportal/internal/services"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Status: "success", Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Status: "error", Message: message})
}

// failErr maps a service error to a status code. Anything unrecognised is a 500 with a
// generic message; the detail goes to the request log only.
func failErr(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	fail(c, status, message)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, services.ErrChallengeNotFound):
		return http.StatusNotFound, "No active verification code. Please request a new one."
	case errors.Is(err, services.ErrChallengeExpired):
		return http.StatusGone, "Verification code has expired. Please request a new one."
	case errors.Is(err, services.ErrCodeMismatch):
		return http.StatusUnauthorized, "Incorrect verification code"
	case errors.Is(err, services.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "Too many incorrect attempts. Please request a new code."
	case errors.Is(err, services.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid session token"
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, services.ErrPostNotFound):
		return http.StatusNotFound, "Post not found"
	case errors.Is(err, services.ErrStorageDisabled):
		return http.StatusServiceUnavailable, "Image uploads are not configured"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func currentUser(c *gin.Context) (*models.Identity, bool) {
	return middleware.IdentityFrom(c)
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
