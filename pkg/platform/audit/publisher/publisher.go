// Package publisher enriches audit events with request metadata and hands them to a store.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	audit "resqnet/pkg/platform/audit"
	"resqnet/pkg/platform/middleware/metadata"
	"resqnet/pkg/requestcontext"
)

// Publisher fills timestamp, category, request id and client label, then appends.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit writes the event synchronously. Callers that treat audit as best-effort
// wrap this in sideeffect.Attempt.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Client == "" {
		event.Client = metadata.DescribeClient(requestcontext.UserAgent(ctx))
	}

	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit append failed",
				"request_id", event.RequestID,
				"action", event.Action,
				"error", err,
			)
		}
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
