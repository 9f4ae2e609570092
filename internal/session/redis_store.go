// Package session provides Redis-backed storage for refresh tokens and the
// per-contract renumber locks that keep at most one reconciliation in flight.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lexdraft/api/internal/store"
)

// TokenData is what we persist per refresh token hash.
type TokenData struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

type RedisStore struct {
	client       *redis.Client
	tokenPrefix  string
	lockPrefix   string
	lockLifetime time.Duration
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{
		client:      client,
		tokenPrefix: "refresh:",
		lockPrefix:  "renumber:",
		// Renumber calls have no timeout of their own; the lock expires so a
		// crashed holder cannot wedge a contract forever.
		lockLifetime: 5 * time.Minute,
	}, nil
}

// SaveRefreshSession stores a refresh token hash with expiration.
func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	payload, err := json.Marshal(TokenData{UserID: userID, CreatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh session already expired")
	}
	if err := s.client.Set(ctx, s.tokenPrefix+tokenHash, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// LookupRefreshSession resolves a refresh token hash to the stored user info.
func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	raw, err := s.client.Get(ctx, s.tokenPrefix+tokenHash).Result()
	if err == redis.Nil {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup refresh token: %w", err)
	}

	var data TokenData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return store.User{}, fmt.Errorf("unmarshal token data: %w", err)
	}
	return store.User{ID: data.UserID, DisplayName: data.DisplayName, Role: data.Role}, nil
}

// RevokeRefreshSession deletes a refresh token hash.
func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.tokenPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// AcquireRenumberLock claims the single in-flight renumber slot for a
// contract. It returns false when another reconciliation already holds it.
func (s *RedisStore) AcquireRenumberLock(ctx context.Context, contractID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.lockPrefix+contractID, "1", s.lockLifetime).Result()
	if err != nil {
		return false, fmt.Errorf("acquire renumber lock: %w", err)
	}
	return ok, nil
}

// ReleaseRenumberLock frees the slot after the reconciliation finishes.
func (s *RedisStore) ReleaseRenumberLock(ctx context.Context, contractID string) error {
	if err := s.client.Del(ctx, s.lockPrefix+contractID).Err(); err != nil {
		return fmt.Errorf("release renumber lock: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
