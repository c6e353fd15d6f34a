package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatapi/internal/guard"
	"chatapi/internal/shared/config"
	"chatapi/internal/token"
	"chatapi/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		GinMode: "release",
		JWT: config.JWTConfig{
			Secret:           "test-secret",
			AccessExpiresIn:  15 * time.Minute,
			RefreshExpiresIn: 7 * 24 * time.Hour,
		},
		Gateway: config.GatewayConfig{
			AllowedOrigins:  []string{"http://localhost:3000"},
			ProtectedRoutes: []string{"/api/rest-api", "/api/protected"},
			APIEndpoints:    []string{"/api", "/trpc", "/webapi", "/oidc"},
			HealthPath:      "/ping",
		},
	}
}

func newTestGatekeeper(cfg *config.Config) (*Gatekeeper, token.Service) {
	tokens := token.NewService(cfg.JWT)
	return NewGatekeeper(cfg, guard.New(tokens)), tokens
}

func TestDecideHealthBypassesEverything(t *testing.T) {
	gk, _ := newTestGatekeeper(testConfig())

	d := gk.Decide(Request{Method: http.MethodGet, Path: "/ping", Origin: "http://evil.example"})
	assert.Equal(t, ActionHealth, d.Action)
	assert.Equal(t, http.StatusOK, d.Status)
	assert.Equal(t, "pong", d.PlainBody)
	assert.Empty(t, d.CorsHeaders)
}

func TestDecideNonAPIPathPassesThroughUnmodified(t *testing.T) {
	gk, _ := newTestGatekeeper(testConfig())

	d := gk.Decide(Request{Method: http.MethodGet, Path: "/login", Origin: "http://localhost:3000"})
	assert.Equal(t, ActionForward, d.Action)
	assert.Empty(t, d.CorsHeaders)
	assert.Empty(t, d.IdentityHeaders)
}

func TestDecidePreflightShortCircuits(t *testing.T) {
	gk, _ := newTestGatekeeper(testConfig())

	d := gk.Decide(Request{
		Method: http.MethodOptions,
		Path:   "/api/rest-api",
		Origin: "http://localhost:3000",
		// No Authorization header: preflight never runs the auth check.
	})
	assert.Equal(t, ActionPreflight, d.Action)
	assert.Equal(t, http.StatusNoContent, d.Status)
	assert.Equal(t, "http://localhost:3000", d.CorsHeaders["Access-Control-Allow-Origin"])
	assert.Equal(t, "true", d.CorsHeaders["Access-Control-Allow-Credentials"])
}

func TestDecideProtectedRouteWithValidToken(t *testing.T) {
	gk, tokens := newTestGatekeeper(testConfig())

	accessToken, err := tokens.IssueAccessToken("alice01", "alice@example.com", "USER")
	require.NoError(t, err)

	d := gk.Decide(Request{
		Method:        http.MethodGet,
		Path:          "/api/rest-api",
		Origin:        "http://localhost:3000",
		Authorization: "Bearer " + accessToken,
	})
	assert.Equal(t, ActionForward, d.Action)
	assert.Equal(t, "alice01", d.IdentityHeaders[HeaderUserID])
	assert.Equal(t, "USER", d.IdentityHeaders[HeaderUserRole])
	assert.Equal(t, "http://localhost:3000", d.CorsHeaders["Access-Control-Allow-Origin"])
}

func TestDecideProtectedRouteOmitsRoleHeaderWhenAbsent(t *testing.T) {
	gk, tokens := newTestGatekeeper(testConfig())

	accessToken, err := tokens.IssueAccessToken("alice01", "", "")
	require.NoError(t, err)

	d := gk.Decide(Request{
		Method:        http.MethodGet,
		Path:          "/api/protected",
		Authorization: "Bearer " + accessToken,
	})
	assert.Equal(t, ActionForward, d.Action)
	assert.Equal(t, "alice01", d.IdentityHeaders[HeaderUserID])
	_, present := d.IdentityHeaders[HeaderUserRole]
	assert.False(t, present)
}

func TestDecideProtectedRouteExpiredToken(t *testing.T) {
	cfg := testConfig()
	gk, _ := newTestGatekeeper(cfg)

	expiredIssuer := token.NewServiceWithClock(cfg.JWT, func() time.Time {
		return time.Now().Add(-time.Hour)
	})
	expired, err := expiredIssuer.IssueAccessToken("alice01", "", "")
	require.NoError(t, err)

	d := gk.Decide(Request{
		Method:        http.MethodGet,
		Path:          "/api/rest-api",
		Origin:        "http://localhost:3000",
		Authorization: "Bearer " + expired,
	})
	assert.Equal(t, ActionReject, d.Action)
	assert.Equal(t, http.StatusUnauthorized, d.Status)
	assert.Equal(t, guard.FailureExpired, d.FailureKind)
	require.NotNil(t, d.Reject)
	assert.False(t, d.Reject.Success)
	assert.Equal(t, "Token 已过期", d.Reject.Error)
	// The 401 still carries CORS headers so browsers can read the body.
	assert.Equal(t, "http://localhost:3000", d.CorsHeaders["Access-Control-Allow-Origin"])
}

func TestDecideProtectedRouteMissingHeader(t *testing.T) {
	gk, _ := newTestGatekeeper(testConfig())

	d := gk.Decide(Request{Method: http.MethodGet, Path: "/api/rest-api"})
	assert.Equal(t, ActionReject, d.Action)
	assert.Equal(t, guard.FailureMissingOrMalformedHeader, d.FailureKind)
}

func TestDecideRejectCarriesClientIP(t *testing.T) {
	gk, _ := newTestGatekeeper(testConfig())

	d := gk.Decide(Request{
		Method:   http.MethodGet,
		Path:     "/api/rest-api",
		ClientIP: "203.0.113.7",
	})
	require.Equal(t, ActionReject, d.Action)
	// The rejection echoes the caller address so the logging adapter does
	// not have to re-resolve it.
	assert.Equal(t, "203.0.113.7", d.ClientIP)
}

func TestDecidePublicAPIPathForwardsWithoutIdentity(t *testing.T) {
	gk, _ := newTestGatekeeper(testConfig())

	d := gk.Decide(Request{
		Method: http.MethodPost,
		Path:   "/api/auth/login",
		Origin: "http://localhost:3000",
	})
	assert.Equal(t, ActionForward, d.Action)
	assert.Empty(t, d.IdentityHeaders)
	assert.Equal(t, "http://localhost:3000", d.CorsHeaders["Access-Control-Allow-Origin"])
}

func TestDecideDebugCodeGatedOffInRelease(t *testing.T) {
	cfg := testConfig() // release mode
	gk, _ := newTestGatekeeper(cfg)

	d := gk.Decide(Request{Method: http.MethodGet, Path: "/api/rest-api"})
	require.NotNil(t, d.Reject)
	assert.Empty(t, d.Reject.Code)

	debugCfg := testConfig()
	debugCfg.GinMode = "debug"
	gkDebug, _ := newTestGatekeeper(debugCfg)

	d = gkDebug.Decide(Request{Method: http.MethodGet, Path: "/api/rest-api"})
	require.NotNil(t, d.Reject)
	assert.NotEmpty(t, d.Reject.Code)
}

// End-to-end through the gin adapter.

func newTestEngine(gk *Gatekeeper) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Middleware(gk, logger.GetDefault()))
	engine.GET("/api/rest-api", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetHeader(HeaderUserID),
		})
	})
	engine.POST("/api/auth/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return engine
}

func TestMiddlewarePreflightEndToEnd(t *testing.T) {
	gk, _ := newTestGatekeeper(testConfig())
	engine := newTestEngine(gk)

	req := httptest.NewRequest(http.MethodOptions, "/api/rest-api", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestMiddlewareExpiredTokenEndToEnd(t *testing.T) {
	cfg := testConfig()
	gk, _ := newTestGatekeeper(cfg)
	engine := newTestEngine(gk)

	expiredIssuer := token.NewServiceWithClock(cfg.JWT, func() time.Time {
		return time.Now().Add(-time.Hour)
	})
	expired, err := expiredIssuer.IssueAccessToken("alice01", "", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/rest-api", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Authorization", "Bearer "+expired)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body RejectBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Token 已过期", body.Error)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMiddlewareInjectsIdentityHeaderEndToEnd(t *testing.T) {
	gk, tokens := newTestGatekeeper(testConfig())
	engine := newTestEngine(gk)

	accessToken, err := tokens.IssueAccessToken("alice01", "", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/rest-api", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":"alice01"`)
}

func TestMiddlewareHealthEndToEnd(t *testing.T) {
	gk, _ := newTestGatekeeper(testConfig())
	engine := newTestEngine(gk)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
