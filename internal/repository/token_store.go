package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore keeps revoked access tokens and issued refresh tokens in Redis.
// Entries are time-boxed: a blacklisted token expires together with the
// token itself and a refresh token expires at the end of its window, so the
// store needs no sweeper.
type TokenStore struct {
	client *redis.Client
}

// NewTokenStore constructs the store.
func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

func blacklistKey(jti string) string {
	return "auth:blacklist:" + jti
}

func refreshKey(token string) string {
	return "auth:refresh:" + token
}

// Blacklist marks an access token (by JTI) as revoked for its remaining
// lifetime.
func (s *TokenStore) Blacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, blacklistKey(jti), "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether the access token's JTI has been revoked.
func (s *TokenStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return n > 0, nil
}

// SaveRefreshToken stores an opaque refresh token mapped to its subject
// ("<role>:<userID>") for the refresh window.
func (s *TokenStore) SaveRefreshToken(ctx context.Context, token, subject string, ttl time.Duration) error {
	if err := s.client.Set(ctx, refreshKey(token), subject, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken atomically fetches and deletes a refresh token,
// returning its subject. Returns redis.Nil when the token is unknown,
// expired or already used.
func (s *TokenStore) ConsumeRefreshToken(ctx context.Context, token string) (string, error) {
	subject, err := s.client.GetDel(ctx, refreshKey(token)).Result()
	if err != nil {
		return "", err
	}
	return subject, nil
}

// RevokeRefreshToken removes a refresh token, ignoring unknowns.
func (s *TokenStore) RevokeRefreshToken(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, refreshKey(token)).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
