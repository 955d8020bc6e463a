package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist remembers revoked JWT ids until their natural expiration.
// With a nil Redis client it falls back to process memory (single instance only).
type TokenBlacklist struct {
	client *redis.Client

	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewTokenBlacklist(client *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{client: client, revoked: map[string]time.Time{}}
}

// Revoke blacklists id until expiresAt.
func (b *TokenBlacklist) Revoke(ctx context.Context, id string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 || id == "" {
		return
	}
	if b.client != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := b.client.Set(ctx, "jwt:blacklist:"+id, "1", ttl).Err(); err == nil {
			return
		}
	}
	b.mu.Lock()
	b.revoked[id] = expiresAt
	b.mu.Unlock()
}

// IsRevoked checks if a token was revoked before natural expiration.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, id string) bool {
	if b.client != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		// fail-open on Redis errors to avoid accidental lockout
		if n, err := b.client.Exists(ctx, "jwt:blacklist:"+id).Result(); err == nil && n > 0 {
			return true
		}
	}

	b.mu.RLock()
	expiresAt, ok := b.revoked[id]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		b.mu.Lock()
		delete(b.revoked, id)
		b.mu.Unlock()
		return false
	}
	return true
}
