package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"chatapi/internal/audit"
	"chatapi/internal/token"
	"chatapi/internal/users"
	"chatapi/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrLoginIDTaken       = errors.New("login id already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrRefreshReuse       = errors.New("refresh token reuse detected")
)

// SigProvider supplies the chat credential the login response carries.
type SigProvider interface {
	UserSig(identifier string) (string, error)
}

// AccountRegistrar makes sure the chat account exists upstream before the
// client connects to the messaging service.
type AccountRegistrar interface {
	EnsureAccount(ctx context.Context, userID, nick, faceURL string) error
}

type Service interface {
	Register(ctx context.Context, req *RegisterRequest) (*UserResponse, error)
	Login(ctx context.Context, req *LoginRequest, clientIP string) (*LoginResponse, error)
	RefreshToken(ctx context.Context, refreshToken, clientIP string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

type service struct {
	repo      Repository
	tokens    token.Service
	families  FamilyStore
	sigs      SigProvider
	registrar AccountRegistrar
	events    audit.Publisher
	logger    *logger.Logger
}

// NewService wires the auth flows. sigs and registrar may be nil when the
// IM gateway is not configured; login then skips the chat provisioning.
func NewService(repo Repository, tokens token.Service, families FamilyStore,
	sigs SigProvider, registrar AccountRegistrar, events audit.Publisher, log *logger.Logger) Service {
	if events == nil {
		events = audit.NopPublisher{}
	}
	return &service{
		repo:      repo,
		tokens:    tokens,
		families:  families,
		sigs:      sigs,
		registrar: registrar,
		events:    events,
		logger:    log,
	}
}

func (s *service) Register(ctx context.Context, req *RegisterRequest) (*UserResponse, error) {
	taken, err := s.repo.LoginIDExists(ctx, req.LoginID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrLoginIDTaken
	}

	taken, err = s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &users.User{
		LoginID:  req.LoginID,
		Email:    req.Email,
		Password: string(hashedPassword),
		Nickname: req.LoginID,
		Role:     users.RoleUser,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, audit.NewEvent(audit.EventUserRegistered, user.LoginID))

	return &UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		LoginID:   user.LoginID,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (s *service) Login(ctx context.Context, req *LoginRequest, clientIP string) (*LoginResponse, error) {
	user, err := s.lookupUser(ctx, req.UsernameOrEmail)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.LogAuthFailure(ctx, "unknown user", clientIP)
			s.publish(ctx, audit.NewEvent(audit.EventLoginFailed, req.UsernameOrEmail).
				WithClientIP(clientIP).WithReason("unknown user"))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		s.logger.LogAuthFailure(ctx, "wrong password", clientIP)
		s.publish(ctx, audit.NewEvent(audit.EventLoginFailed, user.LoginID).
			WithClientIP(clientIP).WithReason("wrong password"))
		return nil, ErrInvalidCredentials
	}

	pair, family, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	// Chat provisioning is best effort: a broken IM gateway must not lock
	// users out of their own backend.
	userSig := s.provisionChat(ctx, user)

	s.logger.LogAuthSuccess(ctx, user.LoginID, "password")
	s.publish(ctx, audit.NewEvent(audit.EventLoginSucceeded, user.LoginID).
		WithFamily(family).WithClientIP(clientIP))

	return &LoginResponse{
		Username:     user.LoginID,
		UserSig:      userSig,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

func (s *service) RefreshToken(ctx context.Context, refreshToken, clientIP string) (*TokenPair, error) {
	outcome := s.tokens.Verify(refreshToken)
	switch outcome.Status {
	case token.StatusExpired:
		return nil, ErrTokenExpired
	case token.StatusValid:
		// continue below
	default:
		return nil, ErrInvalidToken
	}

	claims := outcome.Claims
	if claims.UserID == "" || !claims.IsRefresh() || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	current, err := s.families.CurrentTokenID(ctx, claims.Family)
	if err != nil {
		return nil, err
	}
	if current != "" && current != claims.ID {
		// A superseded token came back. Someone is replaying an old refresh
		// token, so the whole family dies.
		s.logger.LogRefreshReuseDetected(ctx, claims.UserID, claims.Family, clientIP)
		s.publish(ctx, audit.NewEvent(audit.EventRefreshReuseDetected, claims.UserID).
			WithFamily(claims.Family).WithClientIP(clientIP))
		if err := s.families.Revoke(ctx, claims.Family); err != nil {
			s.logger.WithError(err).Warn("failed to revoke token family")
		}
		return nil, ErrRefreshReuse
	}
	// current == "" means the family record was lost (cache flush or TTL).
	// The signature already proved the token genuine, so accept and re-seed.

	user, err := s.repo.GetUserByLoginID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	accessToken, err := s.tokens.IssueAccessToken(user.LoginID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	// Rotation keeps the family: the lineage survives, only the token id
	// moves forward.
	newRefresh, jti, err := s.tokens.IssueRefreshTokenInFamily(user.LoginID, claims.Family)
	if err != nil {
		return nil, err
	}
	if err := s.families.SetCurrentTokenID(ctx, claims.Family, jti, s.tokens.RefreshTTL()); err != nil {
		return nil, err
	}

	s.logger.LogTokenRefreshed(ctx, user.LoginID, claims.Family)
	s.publish(ctx, audit.NewEvent(audit.EventTokenRefreshed, user.LoginID).
		WithFamily(claims.Family).WithClientIP(clientIP))

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the token's family when the token still names one.
// Idempotent: logging out with a dead or garbage token is still a logout.
func (s *service) Logout(ctx context.Context, refreshToken string) error {
	outcome := s.tokens.Verify(refreshToken)
	claims := outcome.Claims
	if claims == nil || claims.Family == "" {
		return nil
	}

	if err := s.families.Revoke(ctx, claims.Family); err != nil {
		s.logger.WithError(err).Warn("failed to revoke token family on logout")
	}
	s.publish(ctx, audit.NewEvent(audit.EventLogout, claims.UserID).WithFamily(claims.Family))
	return nil
}

// lookupUser resolves the login field: an "@" means email, anything else
// is a login id.
func (s *service) lookupUser(ctx context.Context, usernameOrEmail string) (*users.User, error) {
	if strings.Contains(usernameOrEmail, "@") {
		return s.repo.GetUserByEmail(ctx, usernameOrEmail)
	}
	return s.repo.GetUserByLoginID(ctx, usernameOrEmail)
}

// issuePair mints a token pair under a fresh family and seeds the rotation
// tracker with the first token id.
func (s *service) issuePair(ctx context.Context, user *users.User) (*TokenPair, string, error) {
	accessToken, err := s.tokens.IssueAccessToken(user.LoginID, user.Email, string(user.Role))
	if err != nil {
		return nil, "", err
	}

	refreshToken, family, jti, err := s.tokens.IssueRefreshToken(user.LoginID)
	if err != nil {
		return nil, "", err
	}

	if err := s.families.SetCurrentTokenID(ctx, family, jti, s.tokens.RefreshTTL()); err != nil {
		return nil, "", err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, family, nil
}

// provisionChat ensures the chat account exists and returns the user's
// signature. Failures are logged and swallowed.
func (s *service) provisionChat(ctx context.Context, user *users.User) string {
	if s.registrar != nil {
		if err := s.registrar.EnsureAccount(ctx, user.LoginID, user.Nickname, user.Avatar); err != nil {
			s.logger.WithError(err).WithUserID(user.LoginID).Warn("failed to ensure chat account")
		}
	}
	if s.sigs == nil {
		return ""
	}
	sig, err := s.sigs.UserSig(user.LoginID)
	if err != nil {
		s.logger.WithError(err).WithUserID(user.LoginID).Warn("failed to generate user sig")
		return ""
	}
	return sig
}

func (s *service) publish(ctx context.Context, event *audit.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.WithError(err).Warn("failed to publish audit event")
	}
}
