package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rajatsgill7/medicalledger/pkg/config"
)

// RevocationList tracks tokens revoked before their natural expiry. Logout
// adds the token id here; the auth middleware rejects anything listed.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocationList is the Redis-backed revocation list. Entries expire
// with the token so the set stays bounded.
type RedisRevocationList struct {
	client *redis.Client
}

// NewRedisRevocationList creates a revocation list on a new Redis client
func NewRedisRevocationList(cfg *config.RedisConfig) (*RedisRevocationList, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRevocationList{client: client}, nil
}

// Revoke marks a token id as revoked for the remaining token lifetime
func (r *RedisRevocationList) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revocationKey(tokenID), "revoked", ttl).Err()
}

// IsRevoked reports whether a token id has been revoked
func (r *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, revocationKey(tokenID)).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the underlying Redis client
func (r *RedisRevocationList) Close() error {
	return r.client.Close()
}

func revocationKey(tokenID string) string {
	return "revoked_token:" + tokenID
}

// MemoryRevocationList is an in-process revocation list for dev mode and
// tests
type MemoryRevocationList struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

// NewMemoryRevocationList creates an empty in-memory revocation list
func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{revoked: make(map[string]time.Time)}
}

// Revoke marks a token id as revoked until its expiry
func (m *MemoryRevocationList) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = time.Now().Add(ttl)
	return nil
}

// IsRevoked reports whether a token id has been revoked and not yet expired
func (m *MemoryRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	until, ok := m.revoked[tokenID]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if time.Now().After(until) {
		m.mu.Lock()
		delete(m.revoked, tokenID)
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}
