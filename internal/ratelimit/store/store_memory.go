package store

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"resqnet/internal/ratelimit/models"
)

// idleAfter is how long an untouched key is kept before it is swept.
const idleAfter = 10 * time.Minute

// MemoryStore is a per-process token bucket limiter. Buckets refill continuously
// at Requests per Window with a burst of Requests.
type MemoryStore struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	now       func() time.Time
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMemory() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket), now: time.Now}
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit models.Limit) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	b, ok := s.buckets[key]
	if !ok {
		every := rate.Every(limit.Window / time.Duration(max(limit.Requests, 1)))
		b = &bucket{limiter: rate.NewLimiter(every, limit.Requests)}
		s.buckets[key] = b
	}
	b.lastSeen = now

	result := &models.Result{Limit: limit.Requests, ResetAt: now.Add(limit.Window)}
	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		result.RetryAfter = models.RetryAfterSeconds(limit.Window)
		return result, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		result.RetryAfter = models.RetryAfterSeconds(delay)
		result.ResetAt = now.Add(delay)
		return result, nil
	}
	result.Allowed = true
	result.Remaining = max(int(b.limiter.TokensAt(now)), 0)
	return result, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

func (s *MemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < idleAfter {
		return
	}
	s.lastSweep = now
	for key, b := range s.buckets {
		if now.Sub(b.lastSeen) > idleAfter {
			delete(s.buckets, key)
		}
	}
}
