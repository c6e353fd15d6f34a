// Package guard turns a raw Authorization header into a verified identity.
// It is used twice per protected request: once by the edge gatekeeper and
// once by route handlers that re-check for defense in depth.
package guard

import (
	"strings"

	"chatapi/internal/token"
)

// bearerPrefix is the only accepted authorization scheme.
const bearerPrefix = "Bearer "

// FailureKind categorizes why authentication failed. Expired stays separate
// from Invalid: both are 401s, but expiry is expected wear and gets a
// different user-facing message, while the internal signature-vs-malformed
// distinction is deliberately not exposed.
type FailureKind string

const (
	FailureMissingOrMalformedHeader FailureKind = "missing_or_malformed_header"
	FailureEmptyToken               FailureKind = "empty_token"
	FailureExpired                  FailureKind = "expired"
	FailureInvalid                  FailureKind = "invalid"
	FailureIncompleteClaims         FailureKind = "incomplete_claims"
)

// Failure describes a rejected authentication attempt. Message is the
// user-facing string; Kind is stable and machine-readable.
type Failure struct {
	Kind    FailureKind
	Message string
}

// Identity is the verified caller extracted from a valid access token.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// Guard authenticates bearer credentials against a token verifier.
type Guard struct {
	tokens token.Service
}

func New(tokens token.Service) *Guard {
	return &Guard{tokens: tokens}
}

// Authenticate verifies the Authorization header value and returns the
// caller identity, or a categorized failure. Pure given the header and the
// current time; logging is the caller's concern.
func (g *Guard) Authenticate(authHeader string) (*Identity, *Failure) {
	if authHeader == "" {
		return nil, &Failure{
			Kind:    FailureMissingOrMalformedHeader,
			Message: "缺少 Authorization header",
		}
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return nil, &Failure{
			Kind:    FailureMissingOrMalformedHeader,
			Message: "Authorization header 格式不正确，应为 Bearer {token}",
		}
	}

	tokenString := authHeader[len(bearerPrefix):]
	if tokenString == "" {
		return nil, &Failure{
			Kind:    FailureEmptyToken,
			Message: "Token 不能为空",
		}
	}

	outcome := g.tokens.Verify(tokenString)
	switch outcome.Status {
	case token.StatusExpired:
		return nil, &Failure{
			Kind:    FailureExpired,
			Message: "Token 已过期",
		}
	case token.StatusInvalid:
		return nil, &Failure{
			Kind:    FailureInvalid,
			Message: "Token 无效",
		}
	}

	// A well-signed token without a subject was minted for something else
	// entirely; never accept it here.
	if outcome.Claims.UserID == "" {
		return nil, &Failure{
			Kind:    FailureIncompleteClaims,
			Message: "Token payload 缺少必要字段",
		}
	}

	return &Identity{
		UserID: outcome.Claims.UserID,
		Email:  outcome.Claims.Email,
		Role:   outcome.Claims.Role,
	}, nil
}

// IsHeaderFailure reports whether the failure happened before any token was
// verified (missing/malformed header or empty token).
func (f *Failure) IsHeaderFailure() bool {
	switch f.Kind {
	case FailureMissingOrMalformedHeader, FailureEmptyToken:
		return true
	}
	return false
}
