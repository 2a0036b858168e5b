package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"obogportal/internal/authz"
	"obogportal/internal/models"
	"obogportal/internal/services"
)

// AdminCheck is the outcome of the admin gate.
type AdminCheck struct {
	IsAuthenticated bool
	IsAdmin         bool
	User            *models.Identity
}

// Gate answers authorization questions for a request, resolving the session itself when
// Session has not already run.
type Gate struct {
	sessions   services.SessionService
	cookieName string
}

func NewGate(sessions services.SessionService, cookieName string) *Gate {
	return &Gate{sessions: sessions, cookieName: cookieName}
}

func (g *Gate) identity(c *gin.Context) (*models.Identity, bool) {
	if ident, ok := IdentityFrom(c); ok {
		return ident, true
	}
	if SessionError(c) != nil {
		return nil, false
	}
	token := TokenFromRequest(c, g.cookieName)
	if token == "" {
		return nil, false
	}
	ident, err := g.sessions.Resolve(c.Request.Context(), token)
	if err != nil {
		c.Set(sessionErrorKey, err)
		return nil, false
	}
	c.Set(identityKey, ident)
	return ident, true
}

// RequireAdmin never fails: any token problem is "not authenticated".
func (g *Gate) RequireAdmin(c *gin.Context) AdminCheck {
	ident, ok := g.identity(c)
	if !ok {
		return AdminCheck{}
	}
	return AdminCheck{IsAuthenticated: true, IsAdmin: authz.IsAdmin(ident.Role), User: ident}
}

// AdminOnly answers 403 to every caller that is not an admin, signed in or not.
func (g *Gate) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.RequireAdmin(c).IsAdmin {
			abort(c, http.StatusForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

// RequireRoles lets through only identities holding one of the allowed roles.
func (g *Gate) RequireRoles(allowed ...string) gin.HandlerFunc {
	allowedSet := map[string]struct{}{}
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}
	return func(c *gin.Context) {
		ident, ok := g.identity(c)
		if !ok {
			abort(c, http.StatusUnauthorized, unauthenticatedMessage(c))
			return
		}
		if _, ok := allowedSet[ident.Role]; !ok {
			abort(c, http.StatusForbidden, "Forbidden")
			return
		}
		c.Next()
	}
}
