// Package sideeffect runs best-effort actions whose failure must be visible in logs
// and metrics but must never become the outcome of the operation that triggered them
// (rejection emails, deletion of superseded documents, audit fan-out).
package sideeffect

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"resqnet/pkg/requestcontext"
)

var failures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "resqnet_side_effect_failures_total",
	Help: "Best-effort side effects that failed, by operation",
}, []string{"op"})

// Attempt runs fn, logs and counts a failure, and reports whether fn succeeded.
// The error is intentionally not returned.
func Attempt(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error, attrs ...any) bool {
	err := fn(ctx)
	if err == nil {
		return true
	}
	failures.WithLabelValues(op).Inc()
	if logger != nil {
		args := append([]any{
			"request_id", requestcontext.RequestID(ctx),
			"op", op,
			"error", err,
		}, attrs...)
		logger.WarnContext(ctx, "best-effort side effect failed", args...)
	}
	return false
}
