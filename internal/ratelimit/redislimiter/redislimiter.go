// Package redislimiter is an optional distributed backend for the
// sliding-window rate limiter (spec.md §4.2), used when several scheduler
// replicas share one provider's quota and the in-process
// internal/ratelimit.Limiter's single-writer lock can no longer see every
// consumer. It trades the local limiter's precise sliding window for a
// coarser fixed-window counter (INCR + EXPIRE per provider per window
// bucket), which is the standard Redis rate-limiting idiom and cheap
// enough to call on every request.
package redislimiter

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Ceiling is one provider's requests/tokens budget per window.
type Ceiling struct {
	RequestsPerWindow int
	TokensPerWindow   int
}

// Limiter is a Redis-backed fixed-window limiter shared across processes.
type Limiter struct {
	client        *redis.Client
	windowMinutes int
}

// New connects to addr and validates the connection with a bounded Ping,
// mirroring the teacher's NewRedisDedupeStore.
func New(addr string, windowMinutes int) (*Limiter, error) {
	if windowMinutes <= 0 {
		windowMinutes = 1
	}
	c := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redislimiter: ping %s: %w", addr, err)
	}
	return &Limiter{client: c, windowMinutes: windowMinutes}, nil
}

// Close releases the underlying Redis client.
func (l *Limiter) Close() error { return l.client.Close() }

// TryAcquire atomically increments the provider's request and token
// counters for the current window bucket and reports whether the result
// stays within ceiling. On rejection, the increment is rolled back so a
// denied call never consumes quota.
func (l *Limiter) TryAcquire(ctx context.Context, provider string, estimatedTokens int, ceiling Ceiling) (bool, error) {
	bucket := time.Now().UTC().Truncate(time.Duration(l.windowMinutes) * time.Minute).Unix()
	reqKey := fmt.Sprintf("pidgin:ratelimit:%s:%d:requests", provider, bucket)
	tokKey := fmt.Sprintf("pidgin:ratelimit:%s:%d:tokens", provider, bucket)
	ttl := time.Duration(l.windowMinutes)*time.Minute + time.Minute

	pipe := l.client.TxPipeline()
	reqCmd := pipe.IncrBy(ctx, reqKey, 1)
	tokCmd := pipe.IncrBy(ctx, tokKey, int64(estimatedTokens))
	pipe.Expire(ctx, reqKey, ttl)
	pipe.Expire(ctx, tokKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redislimiter: increment %s: %w", provider, err)
	}

	requests, tokens := reqCmd.Val(), tokCmd.Val()
	withinCeiling := (ceiling.RequestsPerWindow <= 0 || requests <= int64(ceiling.RequestsPerWindow)) &&
		(ceiling.TokensPerWindow <= 0 || tokens <= int64(ceiling.TokensPerWindow))
	if withinCeiling {
		return true, nil
	}

	rollback := l.client.TxPipeline()
	rollback.DecrBy(ctx, reqKey, 1)
	rollback.DecrBy(ctx, tokKey, int64(estimatedTokens))
	if _, err := rollback.Exec(ctx); err != nil {
		return false, fmt.Errorf("redislimiter: rollback %s: %w", provider, err)
	}
	return false, nil
}
