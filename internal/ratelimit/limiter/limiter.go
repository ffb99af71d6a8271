// Package limiter checks request budgets against a primary store and switches to
// an in-memory fallback while the primary keeps failing.
package limiter

import (
	"context"
	"log/slog"

	"resqnet/internal/ratelimit/metrics"
	"resqnet/internal/ratelimit/models"
	"resqnet/pkg/platform/circuit"
)

// Store is a rate limit backend.
type Store interface {
	Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error)
}

// Limiter composes a primary store with an optional fallback.
type Limiter struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Limiter)

// WithFallback serves checks from store while the primary is failing.
func WithFallback(store Store) Option {
	return func(l *Limiter) { l.fallback = store }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(l *Limiter) { l.breaker = b }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

func New(primary Store, opts ...Option) *Limiter {
	l := &Limiter{
		primary: primary,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.breaker == nil {
		l.breaker = circuit.New("ratelimit")
	}
	return l
}

// Check reports whether one more request under key fits the budget. degraded is
// true when the answer came from the fallback. Without a fallback, primary errors
// are returned to the caller.
func (l *Limiter) Check(ctx context.Context, key string, limit models.Limit) (result *models.Result, degraded bool, err error) {
	if l.fallback == nil {
		result, err = l.primary.Allow(ctx, key, limit)
		if err != nil {
			l.metrics.IncrementStoreError()
		}
		return result, false, err
	}

	if l.breaker.IsOpen() {
		// Keep probing the primary so the breaker can close again.
		if res, perr := l.primary.Allow(ctx, key, limit); perr == nil {
			usePrimary, change := l.breaker.RecordSuccess()
			l.onChange(ctx, change)
			if usePrimary {
				return res, false, nil
			}
		} else {
			l.metrics.IncrementStoreError()
			l.breaker.RecordFailure()
		}
		result, err = l.fallback.Allow(ctx, key, limit)
		return result, true, err
	}

	result, err = l.primary.Allow(ctx, key, limit)
	if err == nil {
		l.breaker.RecordSuccess()
		return result, false, nil
	}

	l.metrics.IncrementStoreError()
	l.logger.WarnContext(ctx, "rate limit store error", "error", err)
	useFallback, change := l.breaker.RecordFailure()
	l.onChange(ctx, change)
	if !useFallback {
		return nil, false, err
	}
	result, err = l.fallback.Allow(ctx, key, limit)
	return result, true, err
}

func (l *Limiter) onChange(ctx context.Context, change circuit.Change) {
	switch {
	case change.Opened:
		l.logger.WarnContext(ctx, "rate limit store unhealthy, using in-memory fallback",
			"breaker", l.breaker.Name(),
		)
		l.metrics.SetFallback(true)
	case change.Closed:
		l.logger.InfoContext(ctx, "rate limit store recovered",
			"breaker", l.breaker.Name(),
		)
		l.metrics.SetFallback(false)
	}
}
