package token

import (
	"github.com/golang-jwt/jwt/v4"
)

// Claims is the payload carried by both access and refresh tokens. Field
// names match the wire format consumed by the web clients: userId is the
// stable subject identifier, email and role are optional, family and jti
// are set on refresh tokens only.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Family string `json:"family,omitempty"`
	jwt.RegisteredClaims
}

// IsRefresh reports whether the claims belong to a refresh token.
func (c *Claims) IsRefresh() bool {
	return c.Family != ""
}
