package middleware

import (
	"net/http"
	"time"

	"chatapi/internal/guard"
	"chatapi/internal/shared/utils/response"
	"chatapi/pkg/logger"

	"github.com/gin-gonic/gin"
)

// JWTAuth re-checks the access token inside route handlers. The edge
// gatekeeper already ran the same guard for protected paths; handlers do
// not trust forwarded identity headers alone.
func JWTAuth(g *guard.Guard, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, failure := g.Authenticate(c.GetHeader("Authorization"))
		if failure != nil {
			log.LogAuthFailure(c.Request.Context(), string(failure.Kind), c.ClientIP())
			response.RespondError(c, http.StatusUnauthorized, failure.Message, failure.Message)
			c.Abort()
			return
		}

		c.Set("user_id", identity.UserID)
		c.Set("user_email", identity.Email)
		c.Set("user_role", identity.Role)
		c.Next()
	}
}

// RequireRole enforces role-based access control. Must run after JWTAuth.
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("user_role")
		if !exists || role.(string) != requiredRole {
			response.RespondError(c, http.StatusForbidden, "权限不足", "Insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin is RequireRole for the admin role.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole("ADMIN")
}

// RequestLogger logs every request with its latency and status.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.LogHTTPRequest(c, time.Since(start))
	}
}
