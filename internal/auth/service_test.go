package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"chatapi/internal/shared/config"
	"chatapi/internal/token"
	"chatapi/internal/users"
	"chatapi/pkg/logger"
)

type fakeRepo struct {
	byLoginID map[string]*users.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byLoginID: make(map[string]*users.User)}
}

func (r *fakeRepo) CreateUser(_ context.Context, user *users.User) error {
	user.CreatedAt = time.Now()
	r.byLoginID[user.LoginID] = user
	return nil
}

func (r *fakeRepo) GetUserByLoginID(_ context.Context, loginID string) (*users.User, error) {
	if user, ok := r.byLoginID[loginID]; ok {
		return user, nil
	}
	return nil, ErrUserNotFound
}

func (r *fakeRepo) GetUserByEmail(_ context.Context, email string) (*users.User, error) {
	for _, user := range r.byLoginID {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *fakeRepo) LoginIDExists(_ context.Context, loginID string) (bool, error) {
	_, ok := r.byLoginID[loginID]
	return ok, nil
}

func (r *fakeRepo) EmailExists(_ context.Context, email string) (bool, error) {
	for _, user := range r.byLoginID {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

type fakeFamilyStore struct {
	records map[string]string
	revoked []string
}

func newFakeFamilyStore() *fakeFamilyStore {
	return &fakeFamilyStore{records: make(map[string]string)}
}

func (s *fakeFamilyStore) CurrentTokenID(_ context.Context, family string) (string, error) {
	return s.records[family], nil
}

func (s *fakeFamilyStore) SetCurrentTokenID(_ context.Context, family, tokenID string, _ time.Duration) error {
	s.records[family] = tokenID
	return nil
}

func (s *fakeFamilyStore) Revoke(_ context.Context, family string) error {
	delete(s.records, family)
	s.revoked = append(s.revoked, family)
	return nil
}

type authFixture struct {
	service  Service
	repo     *fakeRepo
	families *fakeFamilyStore
	tokens   token.Service
	now      *time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.JWTConfig{
		Secret:           "test-secret",
		AccessExpiresIn:  15 * time.Minute,
		RefreshExpiresIn: 7 * 24 * time.Hour,
	}

	repo := newFakeRepo()
	families := newFakeFamilyStore()
	tokens := token.NewServiceWithClock(cfg, func() time.Time { return now })

	return &authFixture{
		service:  NewService(repo, tokens, families, nil, nil, nil, logger.GetDefault()),
		repo:     repo,
		families: families,
		tokens:   tokens,
		now:      &now,
	}
}

func (f *authFixture) register(t *testing.T, loginID, email string) {
	t.Helper()
	_, err := f.service.Register(context.Background(), &RegisterRequest{
		Email:    email,
		Password: "secret123",
		LoginID:  loginID,
	})
	require.NoError(t, err)
}

func (f *authFixture) login(t *testing.T, usernameOrEmail string) *LoginResponse {
	t.Helper()
	resp, err := f.service.Login(context.Background(), &LoginRequest{
		UsernameOrEmail: usernameOrEmail,
		Password:        "secret123",
	}, "10.0.0.1")
	require.NoError(t, err)
	return resp
}

func TestRegisterHashesPassword(t *testing.T) {
	f := newAuthFixture(t)

	resp, err := f.service.Register(context.Background(), &RegisterRequest{
		Email:    "alice@example.com",
		Password: "secret123",
		LoginID:  "alice42",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice42", resp.LoginID)
	assert.Equal(t, "alice@example.com", resp.Email)

	stored := f.repo.byLoginID["alice42"]
	require.NotNil(t, stored)
	assert.NotEqual(t, "secret123", stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("secret123")))
	assert.Equal(t, users.RoleUser, stored.Role)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice42", "alice@example.com")

	_, err := f.service.Register(context.Background(), &RegisterRequest{
		Email:    "other@example.com",
		Password: "secret123",
		LoginID:  "alice42",
	})
	assert.ErrorIs(t, err, ErrLoginIDTaken)

	_, err = f.service.Register(context.Background(), &RegisterRequest{
		Email:    "alice@example.com",
		Password: "secret123",
		LoginID:  "alice43",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginSeedsTokenFamily(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice42", "alice@example.com")

	resp := f.login(t, "alice42")
	assert.Equal(t, "alice42", resp.Username)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(15*60), resp.ExpiresIn)

	outcome := f.tokens.Verify(resp.RefreshToken)
	require.True(t, outcome.Valid())
	assert.Len(t, outcome.Claims.Family, 32)
	assert.Equal(t, outcome.Claims.ID, f.families.records[outcome.Claims.Family])
}

func TestLoginByEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice42", "alice@example.com")

	resp := f.login(t, "alice@example.com")
	assert.Equal(t, "alice42", resp.Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice42", "alice@example.com")

	_, err := f.service.Login(context.Background(), &LoginRequest{
		UsernameOrEmail: "alice42",
		Password:        "wrong",
	}, "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.service.Login(context.Background(), &LoginRequest{
		UsernameOrEmail: "nobody",
		Password:        "secret123",
	}, "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotationPreservesFamily(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice42", "alice@example.com")
	resp := f.login(t, "alice42")

	first := f.tokens.Verify(resp.RefreshToken).Claims

	pair, err := f.service.RefreshToken(context.Background(), resp.RefreshToken, "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)

	rotated := f.tokens.Verify(pair.RefreshToken).Claims
	require.NotNil(t, rotated)
	assert.Equal(t, first.Family, rotated.Family, "rotation must keep the family")
	assert.NotEqual(t, first.ID, rotated.ID, "rotation must advance the token id")
	assert.Equal(t, rotated.ID, f.families.records[first.Family])
}

func TestRefreshReuseRevokesFamily(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice42", "alice@example.com")
	resp := f.login(t, "alice42")

	_, err := f.service.RefreshToken(context.Background(), resp.RefreshToken, "10.0.0.1")
	require.NoError(t, err)

	// Replaying the superseded token kills the whole family.
	_, err = f.service.RefreshToken(context.Background(), resp.RefreshToken, "10.0.0.1")
	assert.ErrorIs(t, err, ErrRefreshReuse)

	family := f.tokens.Verify(resp.RefreshToken).Claims.Family
	assert.Contains(t, f.families.revoked, family)
	assert.Empty(t, f.families.records[family])
}

func TestRefreshAfterCacheLossFailsOpen(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice42", "alice@example.com")
	resp := f.login(t, "alice42")

	family := f.tokens.Verify(resp.RefreshToken).Claims.Family
	delete(f.families.records, family)

	// The signature still proves the token genuine; accept and re-seed.
	pair, err := f.service.RefreshToken(context.Background(), resp.RefreshToken, "10.0.0.1")
	require.NoError(t, err)

	rotated := f.tokens.Verify(pair.RefreshToken).Claims
	assert.Equal(t, family, rotated.Family)
	assert.Equal(t, rotated.ID, f.families.records[family])
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice42", "alice@example.com")
	resp := f.login(t, "alice42")

	_, err := f.service.RefreshToken(context.Background(), resp.AccessToken, "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice42", "alice@example.com")
	resp := f.login(t, "alice42")

	*f.now = f.now.Add(7*24*time.Hour + time.Minute)

	_, err := f.service.RefreshToken(context.Background(), resp.RefreshToken, "10.0.0.1")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshGarbageToken(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.RefreshToken(context.Background(), "not-a-token", "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshUnknownUser(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice42", "alice@example.com")
	resp := f.login(t, "alice42")

	delete(f.repo.byLoginID, "alice42")

	_, err := f.service.RefreshToken(context.Background(), resp.RefreshToken, "10.0.0.1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLogoutRevokesFamily(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice42", "alice@example.com")
	resp := f.login(t, "alice42")

	require.NoError(t, f.service.Logout(context.Background(), resp.RefreshToken))

	family := f.tokens.Verify(resp.RefreshToken).Claims.Family
	assert.Contains(t, f.families.revoked, family)

	_, err := f.service.RefreshToken(context.Background(), resp.RefreshToken, "10.0.0.1")
	require.NoError(t, err, "logout does not invalidate the token itself, only the family record")
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newAuthFixture(t)

	assert.NoError(t, f.service.Logout(context.Background(), ""))
	assert.NoError(t, f.service.Logout(context.Background(), "garbage"))
}

func TestLoginErrorsDoNotLeakWhichFieldWasWrong(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice42", "alice@example.com")

	_, errUnknown := f.service.Login(context.Background(), &LoginRequest{
		UsernameOrEmail: "nobody", Password: "secret123",
	}, "10.0.0.1")
	_, errWrongPw := f.service.Login(context.Background(), &LoginRequest{
		UsernameOrEmail: "alice42", Password: "wrong",
	}, "10.0.0.1")

	assert.True(t, errors.Is(errUnknown, ErrInvalidCredentials))
	assert.True(t, errors.Is(errWrongPw, ErrInvalidCredentials))
	assert.Equal(t, errUnknown, errWrongPw)
}
