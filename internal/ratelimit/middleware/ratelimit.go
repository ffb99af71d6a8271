// Package middleware applies per-IP and per-email request budgets to HTTP routes.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"resqnet/internal/ratelimit/metrics"
	"resqnet/internal/ratelimit/models"
	dErrors "resqnet/pkg/domain-errors"
	audit "resqnet/pkg/platform/audit"
	"resqnet/pkg/platform/httputil"
	"resqnet/pkg/platform/sideeffect"
	"resqnet/pkg/requestcontext"
)

// peekLimit bounds how much of a body is read to find the email.
const peekLimit = 64 << 10

type Limiter interface {
	Check(ctx context.Context, key string, limit models.Limit) (*models.Result, bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Middleware struct {
	limiter  Limiter
	logger   *slog.Logger
	perIP    models.Limit
	perEmail models.Limit
	disabled bool
	metrics  *metrics.Metrics
	auditor  AuditPublisher
}

type Option func(*Middleware)

// WithDisabled turns every check into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) { m.metrics = mt }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(m *Middleware) { m.auditor = p }
}

func New(limiter Limiter, logger *slog.Logger, perIP, perEmail models.Limit, opts ...Option) *Middleware {
	m := &Middleware{
		limiter:  limiter,
		logger:   logger,
		perIP:    perIP,
		perEmail: perEmail,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit checks the client IP, then the email in the JSON body when there is one.
// Limiter errors fail open.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()

		ip := requestcontext.ClientIP(ctx)
		if ip == "" {
			ip = remoteHost(r)
		}
		if !m.check(ctx, w, models.ScopeIP, ip, m.perIP) {
			return
		}

		if email := peekEmail(r); email != "" {
			if !m.check(ctx, w, models.ScopeEmail, email, m.perEmail) {
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) check(ctx context.Context, w http.ResponseWriter, scope models.Scope, identifier string, limit models.Limit) bool {
	if limit.Requests <= 0 {
		return true
	}
	result, degraded, err := m.limiter.Check(ctx, models.Key(scope, identifier), limit)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to check rate limit",
			"request_id", requestcontext.RequestID(ctx),
			"scope", string(scope),
			"error", err,
		)
		return true
	}
	if degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
	}
	addRateLimitHeaders(w, result)
	m.metrics.IncrementDecision(string(scope), result.Allowed)
	if result.Allowed {
		return true
	}

	m.logger.WarnContext(ctx, "rate limit exceeded",
		"request_id", requestcontext.RequestID(ctx),
		"scope", string(scope),
		"ip_prefix", anonymizeIP(requestcontext.ClientIP(ctx)),
	)
	m.emit(ctx, scope, identifier)
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "Too many requests. Please try again later."))
	return false
}

func (m *Middleware) emit(ctx context.Context, scope models.Scope, identifier string) {
	if m.auditor == nil {
		return
	}
	event := audit.Event{
		Action:  string(audit.EventRateLimitExceeded),
		Subject: string(scope),
		Reason:  "rate_limited",
	}
	if scope == models.ScopeEmail {
		event.Email = identifier
	}
	sideeffect.Attempt(ctx, m.logger, "audit_"+event.Action, func(ctx context.Context) error {
		return m.auditor.Emit(ctx, event)
	})
}

// peekEmail reads the email field from a JSON body and restores the body for
// the next handler.
func peekEmail(r *http.Request) string {
	if r.Method != http.MethodPost || r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, peekLimit))
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), rest), rest}
	if err != nil || len(body) == 0 {
		return ""
	}
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// anonymizeIP keeps the /24 (IPv4) or /48 (IPv6) prefix for logs.
func anonymizeIP(raw string) string {
	ip := net.ParseIP(raw)
	if ip == nil {
		return ""
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return ip.Mask(net.CIDRMask(48, 128)).String()
}
