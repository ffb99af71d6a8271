package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resqnet/internal/ratelimit/models"
)

func TestMemoryStoreRefillsAtWindowRate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemory()
	s.now = func() time.Time { return now }
	limit := models.Limit{Requests: 2, Window: time.Minute}

	first, err := s.Allow(ctx, "k", limit)
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)

	second, err := s.Allow(ctx, "k", limit)
	require.NoError(t, err)
	assert.True(t, second.Allowed)
	assert.Equal(t, 0, second.Remaining)

	third, err := s.Allow(ctx, "k", limit)
	require.NoError(t, err)
	assert.False(t, third.Allowed)
	assert.Equal(t, 30, third.RetryAfter)

	other, err := s.Allow(ctx, "other", limit)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys have separate budgets")

	now = now.Add(30 * time.Second)
	again, err := s.Allow(ctx, "k", limit)
	require.NoError(t, err)
	assert.True(t, again.Allowed)
}

func TestMemoryStoreReset(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	limit := models.Limit{Requests: 1, Window: time.Hour}

	_, err := s.Allow(ctx, "k", limit)
	require.NoError(t, err)
	res, err := s.Allow(ctx, "k", limit)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	require.NoError(t, s.Reset(ctx, "k"))
	res, err = s.Allow(ctx, "k", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryStoreSweepsIdleKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemory()
	s.now = func() time.Time { return now }
	limit := models.Limit{Requests: 1, Window: time.Minute}

	_, err := s.Allow(ctx, "idle", limit)
	require.NoError(t, err)

	now = now.Add(idleAfter + time.Minute)
	_, err = s.Allow(ctx, "fresh", limit)
	require.NoError(t, err)

	assert.NotContains(t, s.buckets, "idle")
	assert.Contains(t, s.buckets, "fresh")
}
