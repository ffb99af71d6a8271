package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"resqnet/internal/agency/models"
	"resqnet/internal/platform/postgres"
	id "resqnet/pkg/domain"
	"resqnet/pkg/platform/sentinel"
	txcontext "resqnet/pkg/platform/tx"
)

// PostgresStore persists applications in the agencies table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const applicationColumns = `
	id, user_id, agency_email, agency_name, agency_type, agency_address, city, state,
	pin_code, team_size, services_offered, pan, gst, ngo_darpan_id, cin,
	medical_reg_number, owner_aadhaar_masked, owner_pan_masked, owner_phone,
	phone_verified, registration_certificate_url, clinic_license_url, business_reg_url,
	status, rejection_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app      models.Application
		appID    uuid.UUID
		userID   uuid.UUID
		teamSize sql.NullInt32
		services []string
		agencyTy string
		status   string
	)
	err := row.Scan(
		&appID, &userID, &app.AgencyEmail, &app.AgencyName, &agencyTy, &app.AgencyAddress, &app.City, &app.State,
		&app.PinCode, &teamSize, pq.Array(&services), &app.PAN, &app.GST, &app.NGODarpanID, &app.CIN,
		&app.MedicalRegNumber, &app.OwnerAadhaarMasked, &app.OwnerPANMasked, &app.OwnerPhone,
		&app.PhoneVerified, &app.RegistrationCertificateURL, &app.ClinicLicenseURL, &app.BusinessRegURL,
		&status, &app.RejectionReason, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	app.ID = id.ApplicationID(appID)
	app.UserID = id.UserID(userID)
	app.AgencyType = models.AgencyType(agencyTy)
	app.Status = models.Status(status)
	app.ServicesOffered = services
	if teamSize.Valid {
		n := int(teamSize.Int32)
		app.TeamSize = &n
	}
	return &app, nil
}

func (s *PostgresStore) FindByOwner(ctx context.Context, owner id.UserID) (*models.Application, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM agencies WHERE user_id = $1`, uuid.UUID(owner))
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find application by owner: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM agencies WHERE id = $1`, uuid.UUID(appID))
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find application by id: %w", err)
	}
	return app, nil
}

const insertApplication = `
	INSERT INTO agencies (` + applicationColumns + `, identity_claimed)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
	        $20, $21, $22, $23, $24, $25, $26, $27, $28)`

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	args := append(writeArgs(app), claimsIdentity(app))
	_, err := s.execer(ctx).ExecContext(ctx, insertApplication, args...)
	if err != nil {
		return mapWriteErr(err, "insert application")
	}
	return nil
}

const updateApplication = `
	UPDATE agencies SET
		agency_email = $3, agency_name = $4, agency_type = $5, agency_address = $6,
		city = $7, state = $8, pin_code = $9, team_size = $10, services_offered = $11,
		pan = $12, gst = $13, ngo_darpan_id = $14, cin = $15, medical_reg_number = $16,
		owner_aadhaar_masked = $17, owner_pan_masked = $18, owner_phone = $19,
		phone_verified = $20, registration_certificate_url = $21, clinic_license_url = $22,
		business_reg_url = $23, status = $24, rejection_reason = $25, updated_at = $26,
		identity_claimed = $27
	WHERE id = $1 AND user_id = $2`

func (s *PostgresStore) Update(ctx context.Context, app *models.Application) error {
	args := writeArgs(app)
	args = append(args[:25], app.UpdatedAt, claimsIdentity(app))
	res, err := s.execer(ctx).ExecContext(ctx, updateApplication, args...)
	if err != nil {
		return mapWriteErr(err, "update application")
	}
	return requireRow(res, "update application")
}

// UpdateStatus leaves identity_claimed untouched so a decision never trips the
// identity indexes.
func (s *PostgresStore) UpdateStatus(ctx context.Context, appID id.ApplicationID, status models.Status, reason string, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE agencies SET status = $2, rejection_reason = $3, updated_at = $4 WHERE id = $1`,
		uuid.UUID(appID), string(status), reason, now)
	if err != nil {
		return mapWriteErr(err, "update application status")
	}
	return requireRow(res, "update application status")
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Summary, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, agency_name, status, agency_address, agency_type, city, state, team_size
		FROM agencies ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []models.Summary
	for rows.Next() {
		var (
			sum      models.Summary
			appID    uuid.UUID
			status   string
			agencyTy string
			teamSize sql.NullInt32
		)
		if err := rows.Scan(&appID, &sum.AgencyName, &status, &sum.AgencyAddress, &agencyTy, &sum.City, &sum.State, &teamSize); err != nil {
			return nil, fmt.Errorf("scan application summary: %w", err)
		}
		sum.ID = id.ApplicationID(appID)
		sum.Status = models.Status(status)
		sum.AgencyType = models.AgencyType(agencyTy)
		if teamSize.Valid {
			n := int(teamSize.Int32)
			sum.TeamSize = &n
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return out, nil
}

// ExistsForOtherOwner only builds SQL from the identityColumns whitelist.
func (s *PostgresStore) ExistsForOtherOwner(ctx context.Context, field models.Field, value string, owner id.UserID) (bool, error) {
	column, ok := identityColumns[field]
	if !ok {
		return false, errUnknownField(field)
	}
	query := `SELECT EXISTS (SELECT 1 FROM agencies WHERE ` + column + ` = $1 AND user_id <> $2)`
	var exists bool
	if err := s.execer(ctx).QueryRowContext(ctx, query, value, uuid.UUID(owner)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s: %w", column, err)
	}
	return exists, nil
}

func writeArgs(app *models.Application) []any {
	var teamSize sql.NullInt32
	if app.TeamSize != nil {
		teamSize = sql.NullInt32{Int32: int32(min(*app.TeamSize, math.MaxInt32)), Valid: true}
	}
	services := app.ServicesOffered
	if services == nil {
		services = []string{}
	}
	return []any{
		uuid.UUID(app.ID), uuid.UUID(app.UserID), app.AgencyEmail, app.AgencyName, string(app.AgencyType),
		app.AgencyAddress, app.City, app.State, app.PinCode, teamSize, pq.Array(services),
		app.PAN, app.GST, app.NGODarpanID, app.CIN, app.MedicalRegNumber,
		app.OwnerAadhaarMasked, app.OwnerPANMasked, app.OwnerPhone, app.PhoneVerified,
		app.RegistrationCertificateURL, app.ClinicLicenseURL, app.BusinessRegURL,
		string(app.Status), app.RejectionReason, app.CreatedAt, app.UpdatedAt,
	}
}

// mapWriteErr turns unique violations on the identity indexes into
// IdentityConflictError and any other unique violation into sentinel.ErrConflict.
func mapWriteErr(err error, op string) error {
	constraint, ok := postgres.UniqueViolation(err)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	column := strings.TrimSuffix(strings.TrimPrefix(constraint, "agencies_"), "_key")
	for field, col := range identityColumns {
		if col == column {
			return &IdentityConflictError{Field: field}
		}
	}
	return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
