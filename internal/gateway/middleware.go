package gateway

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"

	"chatapi/pkg/logger"
)

// Middleware adapts the pure gatekeeper to gin. It runs before every route
// handler: terminal decisions abort the chain, forwards mutate the request
// headers and continue.
func Middleware(gk *Gatekeeper, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := gk.Decide(Request{
			Method:        c.Request.Method,
			Path:          c.Request.URL.Path,
			Origin:        c.GetHeader("Origin"),
			Authorization: c.GetHeader("Authorization"),
			ClientIP:      clientIP(c),
		})

		for key, value := range decision.CorsHeaders {
			c.Header(key, value)
		}

		switch decision.Action {
		case ActionHealth:
			c.String(decision.Status, decision.PlainBody)
			c.Abort()

		case ActionPreflight:
			c.AbortWithStatus(decision.Status)

		case ActionReject:
			log.LogAuthFailure(c.Request.Context(), string(decision.FailureKind), decision.ClientIP)
			c.AbortWithStatusJSON(decision.Status, decision.Reject)

		default:
			for key, value := range decision.IdentityHeaders {
				c.Request.Header.Set(key, value)
			}
			if userID, ok := decision.IdentityHeaders[HeaderUserID]; ok {
				c.Set("user_id", userID)
			}
			if role, ok := decision.IdentityHeaders[HeaderUserRole]; ok {
				c.Set("user_role", role)
			}
			c.Next()
		}
	}
}

// clientIP resolves the caller address with an ordered fallback: gin's
// resolver, then the first X-Forwarded-For entry, then loopback. Resolution
// failures never block a request.
func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}

	return "127.0.0.1"
}
