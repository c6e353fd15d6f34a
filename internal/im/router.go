package im

import (
	"github.com/gin-gonic/gin"
)

// Router handles IM dispatch routes
type Router struct {
	controller *Controller
	authMW     gin.HandlerFunc
}

// NewRouter creates a new IM router. The auth middleware re-checks the
// access token even though the edge gatekeeper already guards this path.
func NewRouter(controller *Controller, authMW gin.HandlerFunc) *Router {
	return &Router{
		controller: controller,
		authMW:     authMW,
	}
}

// SetupRoutes registers all IM routes
func (imRouter *Router) SetupRoutes(rg *gin.RouterGroup) {
	rest := rg.Group("/rest-api")
	rest.Use(imRouter.authMW)
	{
		rest.GET("", imRouter.controller.ListMethods)
		rest.POST("", imRouter.controller.Dispatch)
	}
}
