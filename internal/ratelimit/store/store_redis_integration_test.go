//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"resqnet/internal/ratelimit/models"
	"resqnet/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestFixedWindow() {
	ctx := context.Background()
	limit := models.Limit{Requests: 2, Window: time.Minute}
	key := models.Key(models.ScopeEmail, "Ops@Relief.org")

	for i := range 2 {
		res, err := s.store.Allow(ctx, key, limit)
		s.Require().NoError(err)
		s.True(res.Allowed, "request %d", i+1)
	}

	res, err := s.store.Allow(ctx, key, limit)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(0, res.Remaining)
	s.InDelta(60, res.RetryAfter, 2)

	ttl, err := s.redis.Client.PTTL(ctx, key).Result()
	s.Require().NoError(err)
	s.LessOrEqual(ttl, time.Minute, "later hits must not extend the window")
}

func (s *RedisStoreSuite) TestWindowExpires() {
	ctx := context.Background()
	limit := models.Limit{Requests: 1, Window: time.Second}

	_, err := s.store.Allow(ctx, "rl:ip:198.51.100.4", limit)
	s.Require().NoError(err)
	res, err := s.store.Allow(ctx, "rl:ip:198.51.100.4", limit)
	s.Require().NoError(err)
	s.False(res.Allowed)

	s.Eventually(func() bool {
		res, err := s.store.Allow(ctx, "rl:ip:198.51.100.4", limit)
		return err == nil && res.Allowed
	}, 3*time.Second, 100*time.Millisecond)
}

func (s *RedisStoreSuite) TestReset() {
	ctx := context.Background()
	limit := models.Limit{Requests: 1, Window: time.Hour}

	_, err := s.store.Allow(ctx, "rl:ip:203.0.113.9", limit)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(ctx, "rl:ip:203.0.113.9"))

	res, err := s.store.Allow(ctx, "rl:ip:203.0.113.9", limit)
	s.Require().NoError(err)
	s.True(res.Allowed)
}
