// Package roster stores staff that agencies listed ahead of their signup.
package roster

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"resqnet/internal/auth/models"
	id "resqnet/pkg/domain"
	txcontext "resqnet/pkg/platform/tx"
)

// InMemoryStore keeps roster entries in insertion order.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []models.RosterEntry
}

func NewInMemory(entries ...models.RosterEntry) *InMemoryStore {
	return &InMemoryStore{entries: entries}
}

func (s *InMemoryStore) Add(_ context.Context, entry models.RosterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) ([]models.RosterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := models.NormalizeEmail(email)
	var out []models.RosterEntry
	for _, e := range s.entries {
		if models.NormalizeEmail(e.Email) == key {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) LinkUser(_ context.Context, email string, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.NormalizeEmail(email)
	for i := range s.entries {
		if models.NormalizeEmail(s.entries[i].Email) == key {
			uid := userID
			s.entries[i].UserID = &uid
		}
	}
	return nil
}

// PostgresStore reads and links rows of staff_roster.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Add(ctx context.Context, entry models.RosterEntry) error {
	var agencyID any
	if entry.AgencyID != nil {
		agencyID = uuid.UUID(*entry.AgencyID)
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO staff_roster (email, role, agency_id, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (email, role) DO NOTHING`,
		models.NormalizeEmail(entry.Email), string(entry.Role), agencyID, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert roster entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) ([]models.RosterEntry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT email, role, agency_id, user_id, created_at
		FROM staff_roster WHERE email = $1 ORDER BY created_at`, models.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("find roster entries: %w", err)
	}
	defer rows.Close()

	var out []models.RosterEntry
	for rows.Next() {
		var (
			e        models.RosterEntry
			role     string
			agencyID uuid.NullUUID
			userID   uuid.NullUUID
		)
		if err := rows.Scan(&e.Email, &role, &agencyID, &userID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan roster entry: %w", err)
		}
		e.Role = models.Role(role)
		if agencyID.Valid {
			a := id.ApplicationID(agencyID.UUID)
			e.AgencyID = &a
		}
		if userID.Valid {
			u := id.UserID(userID.UUID)
			e.UserID = &u
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LinkUser(ctx context.Context, email string, userID id.UserID) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE staff_roster SET user_id = $2 WHERE email = $1`,
		models.NormalizeEmail(email), uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("link roster entry: %w", err)
	}
	return nil
}
