package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"chatapi/internal/shared/config"
)

// Service mints and verifies the HS256 access/refresh token pair. It is a
// pure computation over (claims, secret, clock): no I/O, no locks, safe for
// concurrent use from any request goroutine.
type Service interface {
	// IssueAccessToken mints a short-lived access token for the subject.
	IssueAccessToken(userID, email, role string) (string, error)

	// IssueRefreshToken mints a refresh token under a freshly generated
	// family identifier and returns (token, family, jti).
	IssueRefreshToken(userID string) (string, string, string, error)

	// IssueRefreshTokenInFamily mints a refresh token that continues an
	// existing family lineage, returning (token, jti). Used by rotation.
	IssueRefreshTokenInFamily(userID, family string) (string, string, error)

	// Verify checks signature and lifetime and returns a discriminated
	// outcome. Expected conditions (expired, tampered, malformed) are
	// outcome kinds, never errors.
	Verify(tokenString string) Outcome

	// AccessTTL and RefreshTTL expose the configured lifetimes, for the
	// ExpiresIn field of token pairs and for sizing family records.
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

type service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewService builds a token service from the JWT configuration. The caller
// is responsible for having validated that the secret is present.
func NewService(cfg config.JWTConfig) Service {
	return &service{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessExpiresIn,
		refreshTTL: cfg.RefreshExpiresIn,
		now:        time.Now,
	}
}

// NewServiceWithClock is NewService with an injected clock, for tests that
// need to place issuance in the past or right at the expiry boundary.
func NewServiceWithClock(cfg config.JWTConfig, now func() time.Time) Service {
	s := NewService(cfg).(*service)
	s.now = now
	return s
}

func (s *service) IssueAccessToken(userID, email, role string) (string, error) {
	return s.sign(&Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
	}, s.accessTTL)
}

func (s *service) IssueRefreshToken(userID string) (string, string, string, error) {
	family, err := newFamily()
	if err != nil {
		return "", "", "", err
	}

	tokenString, jti, err := s.IssueRefreshTokenInFamily(userID, family)
	if err != nil {
		return "", "", "", err
	}

	return tokenString, family, jti, nil
}

func (s *service) IssueRefreshTokenInFamily(userID, family string) (string, string, error) {
	jti := uuid.NewString()
	tokenString, err := s.sign(&Claims{
		UserID: userID,
		Family: family,
		RegisteredClaims: jwt.RegisteredClaims{
			ID: jti,
		},
	}, s.refreshTTL)
	if err != nil {
		return "", "", err
	}

	return tokenString, jti, nil
}

func (s *service) sign(claims *Claims, ttl time.Duration) (string, error) {
	// Second granularity: the wire format carries Unix seconds.
	now := s.now().Truncate(time.Second)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

func (s *service) Verify(tokenString string) Outcome {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err == nil {
		// jwt/v4 skips lifetime validation when the claims are absent, so a
		// well-signed token without iat/exp would verify forever. A token
		// without a bounded window never passes.
		if claims.IssuedAt == nil || claims.ExpiresAt == nil {
			return Outcome{Status: StatusInvalid, Reason: ReasonIncompleteClaims}
		}
		return Outcome{Status: StatusValid, Claims: claims}
	}

	var vErr *jwt.ValidationError
	if !errors.As(err, &vErr) {
		return Outcome{Status: StatusInvalid, Reason: ReasonMalformed}
	}

	switch {
	case vErr.Errors&jwt.ValidationErrorMalformed != 0:
		return Outcome{Status: StatusInvalid, Reason: ReasonMalformed}
	case vErr.Errors&(jwt.ValidationErrorSignatureInvalid|jwt.ValidationErrorUnverifiable) != 0:
		// Signature problems win over expiry: an expired-and-tampered token
		// is tampered, not merely stale.
		return Outcome{Status: StatusInvalid, Reason: ReasonSignatureInvalid}
	case vErr.Errors&jwt.ValidationErrorExpired != 0:
		// The signature checked out, only the lifetime is over. Claims stay
		// readable so the caller can log who presented the stale token.
		return Outcome{Status: StatusExpired, Claims: claims}
	default:
		return Outcome{Status: StatusInvalid, Reason: ReasonMalformed}
	}
}

func (s *service) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// newFamily generates the 128-bit hex identifier naming a refresh token
// lineage. Independent of any previously issued family.
func newFamily() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token family: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
