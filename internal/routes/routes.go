package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"obogportal/internal/authz"
	"obogportal/internal/handlers"
	"obogportal/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	session gin.HandlerFunc,
	gate *middleware.Gate,
	limiter *middleware.RateLimiter,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	debugHandler *handlers.DebugHandler,
	postHandler *handlers.PostHandler,
) *gin.Engine {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", session)

	// ---- auth
	auth := api.Group("/auth")
	{
		auth.POST("/send-otp", limiter.Handler(), authHandler.SendOTP)
		auth.POST("/verify-otp", limiter.Handler(), authHandler.VerifyOTP)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/me", middleware.RequireAuth(), authHandler.Me)
	}

	// ---- admin
	admin := api.Group("/admin", gate.AdminOnly())
	{
		admin.GET("/email-config", adminHandler.EmailConfig)
		admin.GET("/users/roster.pdf", adminHandler.RosterPDF)
	}

	// ---- debug (admin only)
	debug := api.Group("/debug", gate.AdminOnly())
	{
		debug.GET("/users", debugHandler.Users)
	}

	// ---- posts
	posts := api.Group("/posts", middleware.RequireAuth())
	{
		posts.GET("", postHandler.List)
		posts.GET("/:id", postHandler.Get)
		posts.DELETE("/:id", postHandler.Delete)

		writers := gate.RequireRoles(authz.RoleAdmin, authz.RoleOBOG, authz.RoleCurrent)
		posts.POST("", writers, postHandler.Create)
		posts.POST("/upload-url", writers, postHandler.UploadURL)
	}

	return r
}
