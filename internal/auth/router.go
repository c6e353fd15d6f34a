package auth

import (
	"github.com/gin-gonic/gin"
)

// Router handles auth-related routes
type Router struct {
	controller *Controller
	authMW     gin.HandlerFunc
}

// NewRouter creates a new auth router
func NewRouter(controller *Controller, authMW gin.HandlerFunc) *Router {
	return &Router{
		controller: controller,
		authMW:     authMW,
	}
}

// SetupRoutes registers all auth routes
func (authRouter *Router) SetupRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		// Public routes (no authentication required)
		auth.POST("/register", authRouter.controller.Register)
		auth.POST("/login", authRouter.controller.Login)
		auth.POST("/refresh", authRouter.controller.RefreshToken)
		auth.POST("/logout", authRouter.controller.Logout)

		// Protected routes (authentication required)
		protected := auth.Group("")
		protected.Use(authRouter.authMW)
		{
			protected.GET("/me", authRouter.controller.GetMe)
		}
	}
}
