package auth

import (
	"context"
	"errors"
	"time"

	"chatapi/pkg/cache"
)

const familyKeyPrefix = "auth:family:"

// FamilyStore tracks the newest refresh token of each family. Every
// rotation supersedes the previous token id, so presenting an older one
// means the token leaked and the whole family must die.
type FamilyStore interface {
	// CurrentTokenID returns the latest token id recorded for the family,
	// or "" when the family is unknown (expired or never seen).
	CurrentTokenID(ctx context.Context, family string) (string, error)
	SetCurrentTokenID(ctx context.Context, family, tokenID string, ttl time.Duration) error
	Revoke(ctx context.Context, family string) error
}

type familyStore struct {
	cache cache.Service
}

func NewFamilyStore(cache cache.Service) FamilyStore {
	return &familyStore{cache: cache}
}

func (s *familyStore) CurrentTokenID(ctx context.Context, family string) (string, error) {
	var tokenID string
	err := s.cache.Get(ctx, familyKeyPrefix+family, &tokenID)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return "", nil
		}
		return "", err
	}
	return tokenID, nil
}

func (s *familyStore) SetCurrentTokenID(ctx context.Context, family, tokenID string, ttl time.Duration) error {
	return s.cache.Set(ctx, familyKeyPrefix+family, tokenID, ttl)
}

func (s *familyStore) Revoke(ctx context.Context, family string) error {
	return s.cache.Delete(ctx, familyKeyPrefix+family)
}
