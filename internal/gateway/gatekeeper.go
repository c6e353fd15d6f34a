package gateway

import (
	"net/http"

	"chatapi/internal/guard"
	"chatapi/internal/shared/config"
)

// Identity headers injected on authenticated forwards, consumed by
// downstream handlers.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// Request is the slice of an inbound HTTP request the gatekeeper needs.
// Keeping it framework-free makes every decision unit-testable without a
// live server.
type Request struct {
	Method        string
	Path          string
	Origin        string
	Authorization string
	ClientIP      string
}

// Action is the terminal state the gatekeeper reached for a request.
type Action int

const (
	// ActionForward hands the request to the next handler, possibly with
	// identity headers added.
	ActionForward Action = iota
	// ActionHealth terminates with the fixed liveness body.
	ActionHealth
	// ActionPreflight terminates an OPTIONS request with 204 and CORS
	// headers only.
	ActionPreflight
	// ActionReject terminates with an error body.
	ActionReject
)

// RejectBody is the JSON error payload for rejected requests.
type RejectBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Decision is the outcome of classifying one request. Headers maps are nil
// when no headers of that kind apply.
type Decision struct {
	Action          Action
	Status          int
	PlainBody       string
	Reject          *RejectBody
	CorsHeaders     map[string]string
	IdentityHeaders map[string]string

	// Route is the classification that produced the decision; kept for
	// logging.
	Route RouteClass
	// FailureKind and ClientIP are set on auth rejections, for logging.
	FailureKind guard.FailureKind
	ClientIP    string
}

// Gatekeeper classifies every inbound request and decides whether it is
// forwarded, answered, or rejected. All configuration is immutable after
// construction; Decide is a pure function of (request, config, clock) and
// never touches a datastore.
type Gatekeeper struct {
	gateway config.GatewayConfig
	cors    *CorsPolicy
	guard   *guard.Guard
	debug   bool
}

func NewGatekeeper(cfg *config.Config, g *guard.Guard) *Gatekeeper {
	// The permissive origin echo must never survive into production, even
	// when the flag is set.
	devEcho := cfg.Gateway.DevAllowAnyOrigin && !cfg.IsProduction()
	return &Gatekeeper{
		gateway: cfg.Gateway,
		cors:    NewCorsPolicy(cfg.Gateway.AllowedOrigins, devEcho),
		guard:   g,
		debug:   !cfg.IsProduction(),
	}
}

// Decide runs the request through the gatekeeper state machine:
// health check, route classification, preflight short-circuit, auth check,
// then forward or reject.
func (gk *Gatekeeper) Decide(req Request) Decision {
	route := Classify(req.Path, gk.gateway.HealthPath, gk.gateway.ProtectedRoutes)

	// Uptime probes send neither CORS headers nor credentials; answer
	// before any other processing.
	if route == RouteHealth {
		return Decision{
			Action:    ActionHealth,
			Status:    http.StatusOK,
			PlainBody: "pong",
			Route:     route,
		}
	}

	// Paths outside the API namespaces never enter the API branch.
	if !UnderAPI(req.Path, gk.gateway.APIEndpoints) {
		return Decision{Action: ActionForward, Route: route}
	}

	cors := gk.cors.Decide(req.Origin).Headers()

	if req.Method == http.MethodOptions {
		return Decision{
			Action:      ActionPreflight,
			Status:      http.StatusNoContent,
			CorsHeaders: cors,
			Route:       route,
		}
	}

	if route == RouteProtected {
		identity, failure := gk.guard.Authenticate(req.Authorization)
		if failure != nil {
			return Decision{
				Action:      ActionReject,
				Status:      http.StatusUnauthorized,
				Reject:      gk.rejectBody(failure),
				CorsHeaders: cors,
				Route:       route,
				FailureKind: failure.Kind,
				ClientIP:    req.ClientIP,
			}
		}

		identityHeaders := map[string]string{HeaderUserID: identity.UserID}
		if identity.Role != "" {
			identityHeaders[HeaderUserRole] = identity.Role
		}
		return Decision{
			Action:          ActionForward,
			CorsHeaders:     cors,
			IdentityHeaders: identityHeaders,
			Route:           route,
		}
	}

	// Public API path: forward with CORS attached, no identity.
	return Decision{Action: ActionForward, CorsHeaders: cors, Route: route}
}

func (gk *Gatekeeper) rejectBody(failure *guard.Failure) *RejectBody {
	body := &RejectBody{
		Success: false,
		Error:   failure.Message,
		Message: failureHint(failure.Kind),
	}
	// The machine-readable category is a debugging aid only; production
	// clients get just the message.
	if gk.debug {
		body.Code = string(failure.Kind)
	}
	return body
}

func failureHint(kind guard.FailureKind) string {
	switch kind {
	case guard.FailureMissingOrMalformedHeader, guard.FailureEmptyToken:
		return "请提供 Bearer token，格式: Authorization: Bearer <token>"
	case guard.FailureExpired:
		return "请使用 refresh token 换取新的 access token"
	case guard.FailureIncompleteClaims:
		return "请重新登录获取新的 Token"
	default:
		return "请检查 token 是否有效"
	}
}
