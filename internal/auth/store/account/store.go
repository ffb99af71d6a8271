// Package account stores login credentials.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"resqnet/internal/auth/models"
	"resqnet/internal/platform/postgres"
	id "resqnet/pkg/domain"
	"resqnet/pkg/platform/sentinel"
	txcontext "resqnet/pkg/platform/tx"
)

// InMemoryStore keys accounts by normalized email.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[string]*models.Account)}
}

func (s *InMemoryStore) Create(_ context.Context, acct *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.NormalizeEmail(acct.Email)
	if _, ok := s.accounts[key]; ok {
		return sentinel.ErrConflict
	}
	stored := *acct
	s.accounts[key] = &stored
	return nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[models.NormalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *acct
	return &out, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acct := range s.accounts {
		if acct.ID == userID {
			out := *acct
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// PostgresStore persists accounts in the accounts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, acct *models.Account) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(acct.ID), models.NormalizeEmail(acct.Email), acct.PasswordHash, string(acct.Role), acct.CreatedAt)
	if err != nil {
		if _, ok := postgres.UniqueViolation(err); ok {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM accounts WHERE lower(email) = $1`, models.NormalizeEmail(email))
	return scanAccount(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.Account, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM accounts WHERE id = $1`, uuid.UUID(userID))
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		acct   models.Account
		userID uuid.UUID
		role   string
	)
	if err := row.Scan(&userID, &acct.Email, &acct.PasswordHash, &role, &acct.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	acct.ID = id.UserID(userID)
	acct.Role = models.Role(role)
	return &acct, nil
}
