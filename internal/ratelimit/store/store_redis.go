package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"resqnet/internal/ratelimit/models"
)

// RedisStore counts requests in fixed windows shared by every instance.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Allow increments the window counter for key. The expiry is only set by the
// first hit so the window does not slide.
func (s *RedisStore) Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error) {
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, limit.Window)
		ttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit window %s: %w", key, err)
	}

	count := int(incr.Val())
	remainingTTL := ttl.Val()
	if remainingTTL <= 0 {
		remainingTTL = limit.Window
	}
	result := &models.Result{
		Allowed:   count <= limit.Requests,
		Limit:     limit.Requests,
		Remaining: max(limit.Requests-count, 0),
		ResetAt:   s.now().Add(remainingTTL),
	}
	if !result.Allowed {
		result.RetryAfter = models.RetryAfterSeconds(remainingTTL)
	}
	return result, nil
}

// Reset drops the counter for key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
