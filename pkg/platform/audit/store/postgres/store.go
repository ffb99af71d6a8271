package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "resqnet/pkg/platform/audit"
	txcontext "resqnet/pkg/platform/tx"
)

// Store appends audit events to the audit_events table. When the context carries
// a transaction the event commits or rolls back with the business write.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const insertEvent = `
	INSERT INTO audit_events (
		id, category, occurred_at, user_id, subject, action,
		decision, reason, email, request_id, actor_id, client
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	var userID sql.NullString
	if !event.UserID.IsNil() {
		userID = sql.NullString{String: event.UserID.String(), Valid: true}
	}
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	_, err := s.execer(ctx).ExecContext(ctx, insertEvent,
		uuid.New(),
		string(category),
		event.Timestamp,
		userID,
		event.Subject,
		event.Action,
		event.Decision,
		event.Reason,
		event.Email,
		event.RequestID,
		event.ActorID,
		event.Client,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
