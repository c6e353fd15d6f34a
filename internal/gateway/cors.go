package gateway

import "strconv"

// Response header constants for the CORS decision. Methods and headers are
// process-wide constants; only the origin line varies per request.
const (
	corsMaxAgeSeconds = 86400

	headerAllowOrigin      = "Access-Control-Allow-Origin"
	headerAllowMethods     = "Access-Control-Allow-Methods"
	headerAllowHeaders     = "Access-Control-Allow-Headers"
	headerAllowCredentials = "Access-Control-Allow-Credentials"
	headerMaxAge           = "Access-Control-Max-Age"
)

const (
	allowedMethods = "GET, POST, PUT, DELETE, PATCH, OPTIONS"
	allowedHeaders = "Content-Type, Authorization, X-Requested-With"
)

// CorsDecision is the computed header set for one request. AllowOrigin is
// empty when the origin is not acceptable, in which case the browser blocks
// the response.
type CorsDecision struct {
	AllowOrigin      string
	AllowMethods     string
	AllowHeaders     string
	AllowCredentials bool
	MaxAgeSeconds    int
}

// CorsPolicy is the immutable allow-list configuration, built once at
// startup.
type CorsPolicy struct {
	allowedOrigins map[string]bool
	wildcard       bool
	devEchoOrigin  bool
}

// NewCorsPolicy builds the policy from the configured origin allow-list.
// devEchoOrigin echoes unknown origins back and must only be enabled in
// development; callers gate it on an explicit flag plus non-release mode.
func NewCorsPolicy(allowedOrigins []string, devEchoOrigin bool) *CorsPolicy {
	p := &CorsPolicy{
		allowedOrigins: make(map[string]bool, len(allowedOrigins)),
		devEchoOrigin:  devEchoOrigin,
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			p.wildcard = true
			continue
		}
		p.allowedOrigins[origin] = true
	}
	return p
}

// Decide computes the CORS headers for a request origin. Credentials are
// allowed only when a concrete origin is echoed: combining credentials with
// the "*" origin is forbidden by the CORS spec, so wildcard responses never
// carry the credentials header.
func (p *CorsPolicy) Decide(requestOrigin string) CorsDecision {
	d := CorsDecision{
		AllowMethods:  allowedMethods,
		AllowHeaders:  allowedHeaders,
		MaxAgeSeconds: corsMaxAgeSeconds,
	}

	switch {
	case requestOrigin != "" && p.allowedOrigins[requestOrigin]:
		d.AllowOrigin = requestOrigin
		d.AllowCredentials = true
	case p.wildcard:
		d.AllowOrigin = "*"
	case requestOrigin != "" && p.devEchoOrigin:
		d.AllowOrigin = requestOrigin
		d.AllowCredentials = true
	}

	return d
}

// Headers renders the decision as response header pairs, omitting the
// origin and credentials lines when they do not apply.
func (d CorsDecision) Headers() map[string]string {
	h := map[string]string{
		headerAllowMethods: d.AllowMethods,
		headerAllowHeaders: d.AllowHeaders,
		headerMaxAge:       strconv.Itoa(d.MaxAgeSeconds),
	}
	if d.AllowOrigin != "" {
		h[headerAllowOrigin] = d.AllowOrigin
	}
	if d.AllowCredentials {
		h[headerAllowCredentials] = "true"
	}
	return h
}
