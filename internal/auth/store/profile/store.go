// Package profile stores activation state for accounts.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"resqnet/internal/auth/models"
	"resqnet/internal/platform/postgres"
	id "resqnet/pkg/domain"
	"resqnet/pkg/platform/sentinel"
	txcontext "resqnet/pkg/platform/tx"
)

// InMemoryStore keys profiles by user id.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.UserID]*models.Profile
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.UserID]*models.Profile)}
}

func clone(p *models.Profile) *models.Profile {
	out := *p
	if p.OTPExpiresAt != nil {
		exp := *p.OTPExpiresAt
		out.OTPExpiresAt = &exp
	}
	return &out
}

func (s *InMemoryStore) Create(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, other := range s.profiles {
		if models.NormalizeEmail(other.Email) == models.NormalizeEmail(p.Email) {
			return sentinel.ErrConflict
		}
	}
	s.profiles[p.ID] = clone(p)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.profiles[p.ID] = clone(p)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(p), nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := models.NormalizeEmail(email)
	for _, p := range s.profiles {
		if models.NormalizeEmail(p.Email) == key {
			return clone(p), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// PostgresStore persists profiles in the profiles table.
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

func nullableOTP(p *models.Profile) (sql.NullString, sql.NullTime) {
	otp := sql.NullString{String: p.OTP, Valid: p.OTP != ""}
	var exp sql.NullTime
	if p.OTPExpiresAt != nil {
		exp = sql.NullTime{Time: *p.OTPExpiresAt, Valid: true}
	}
	return otp, exp
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Profile) error {
	otp, exp := nullableOTP(p)
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO profiles (id, email, role, verified, otp, otp_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(p.ID), models.NormalizeEmail(p.Email), string(p.Role), p.Verified, otp, exp, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if _, ok := postgres.UniqueViolation(err); ok {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Profile) error {
	otp, exp := nullableOTP(p)
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE profiles SET role = $2, verified = $3, otp = $4, otp_expires_at = $5, updated_at = $6
		WHERE id = $1`,
		uuid.UUID(p.ID), string(p.Role), p.Verified, otp, exp, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const profileColumns = `id, email, role, verified, otp, otp_expires_at, created_at, updated_at`

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.Profile, error) {
	return scanProfile(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, uuid.UUID(userID)))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return scanProfile(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE lower(email) = $1`, models.NormalizeEmail(email)))
}

func scanProfile(row *sql.Row) (*models.Profile, error) {
	var (
		p      models.Profile
		userID uuid.UUID
		role   string
		otp    sql.NullString
		exp    sql.NullTime
	)
	if err := row.Scan(&userID, &p.Email, &role, &p.Verified, &otp, &exp, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	p.ID = id.UserID(userID)
	p.Role = models.Role(role)
	p.OTP = otp.String
	if exp.Valid {
		t := exp.Time.In(time.UTC)
		p.OTPExpiresAt = &t
	}
	return &p, nil
}
