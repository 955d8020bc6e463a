package utils

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginGuard counts failed admin logins per IP and bans an IP for a while once
// the hourly budget is spent. Without Redis it lets everything through.
type LoginGuard struct {
	client      *redis.Client
	maxFailures int
	ban         time.Duration
}

func NewLoginGuard(client *redis.Client, maxFailuresPerHour int, ban time.Duration) *LoginGuard {
	if ban <= 0 {
		ban = 30 * time.Minute
	}
	return &LoginGuard{client: client, maxFailures: maxFailuresPerHour, ban: ban}
}

func loginKey(parts ...string) string {
	return "login:" + strings.Join(parts, ":")
}

// IsBanned checks temporary ban status for ip.
func (g *LoginGuard) IsBanned(ctx context.Context, ip string) bool {
	if g == nil || g.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	exists, err := g.client.Exists(ctx, loginKey("ban", ip)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

// RecordFailure increments the hourly failure counter and bans ip once it exceeds the budget.
// It returns the current count.
func (g *LoginGuard) RecordFailure(ctx context.Context, ip string) int {
	if g == nil || g.client == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	key := loginKey("failhour", ip, time.Now().Format("2006010215"))
	n, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		return 0
	}
	_ = g.client.Expire(ctx, key, time.Hour).Err()
	if g.maxFailures > 0 && int(n) >= g.maxFailures {
		_ = g.client.Set(ctx, loginKey("ban", ip), "1", g.ban).Err()
		Sugar.Warnf("login temporarily banned ip=%s failures=%d", ip, n)
	}
	return int(n)
}
