// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore backed by Redis, allowing
// rate limit state to be shared across API instances. It uses a fixed window
// counter: INCR on the key plus an expiry set on the first request of the
// window.
//
// Fail-open: if Redis is unreachable the request is allowed, since dropping
// traffic on a rate limiter outage is worse than briefly losing the limit.
type RedisRateLimitStore struct {
	client  *redis.Client
	metrics *Metrics
}

// NewRedisRateLimitStore creates a new Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// NewRedisRateLimitStoreWithMetrics creates a Redis-backed store that counts
// fail-open events.
func NewRedisRateLimitStoreWithMetrics(client *redis.Client, metrics *Metrics) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, metrics: metrics}
}

// Allow checks if a request from the given key should be allowed.
// Implements the RateLimitStore interface.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, config.WindowDuration)

	if _, err := pipe.Exec(ctx); err != nil {
		s.failOpen(ctx, key, err)
		return true, config.RequestsPerWindow, 0
	}

	count := int(incr.Val())
	if count <= config.RequestsPerWindow {
		return true, config.RequestsPerWindow - count, 0
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		return false, 0, 1
	}

	retryAfter := int(ttl / time.Second)
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}

func (s *RedisRateLimitStore) failOpen(ctx context.Context, key string, err error) {
	slog.WarnContext(ctx, "rate limit store unavailable, allowing request",
		"key", key,
		"error", err.Error())
	if s.metrics != nil {
		s.metrics.IncRateLimitRedisErrors()
	}
}
