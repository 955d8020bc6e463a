package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/ygportal/config"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// GetRedis returns the shared Redis client, or nil when Redis is disabled or
// did not answer at startup. Callers fall back to process memory on nil.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		redisClient = ConnectRedis(context.Background(), config.Get())
	})
	return redisClient
}

// ConnectRedis builds a client and pings it once, returning nil when cfg
// disables Redis or the server is unreachable.
func ConnectRedis(ctx context.Context, cfg config.AppConfig) *redis.Client {
	if cfg.RedisDisabled {
		Sugar.Info("redis disabled, using in-process storage")
		return nil
	}
	client := NewRedisClient(cfg)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		Sugar.Warnf("redis ping failed, using in-process storage: %v", err)
		_ = client.Close()
		return nil
	}
	return client
}

// NewRedisClient builds a client from cfg without connecting.
func NewRedisClient(cfg config.AppConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}
