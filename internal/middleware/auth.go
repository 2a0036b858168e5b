package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"obogportal/internal/models"
	"obogportal/internal/services"
)

const (
	identityKey     = "identity"
	sessionErrorKey = "session_error"
)

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": message})
}

// TokenFromRequest reads the session cookie, falling back to an Authorization bearer header.
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	parts := strings.SplitN(strings.TrimSpace(c.GetHeader("Authorization")), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Session resolves the caller's identity when a token is present. It never aborts; routes
// that need a user add RequireAuth.
func Session(sessions services.SessionService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		token := TokenFromRequest(c, cookieName)
		if token == "" {
			c.Next()
			return
		}
		ident, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			c.Set(sessionErrorKey, err)
			c.Next()
			return
		}
		c.Set(identityKey, ident)
		c.Next()
	}
}

// RequireAuth answers 401 unless Session attached an identity.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := IdentityFrom(c); !ok {
			abort(c, http.StatusUnauthorized, unauthenticatedMessage(c))
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (*models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	ident, ok := v.(*models.Identity)
	return ident, ok && ident != nil
}

// SessionError is the reason a presented token was rejected, if any.
func SessionError(c *gin.Context) error {
	v, ok := c.Get(sessionErrorKey)
	if !ok {
		return nil
	}
	err, _ := v.(error)
	return err
}

func unauthenticatedMessage(c *gin.Context) string {
	if errors.Is(SessionError(c), services.ErrInvalidToken) {
		return "Invalid session token"
	}
	return "Not authenticated"
}
