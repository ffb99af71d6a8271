//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"resqnet/internal/agency/models"
	id "resqnet/pkg/domain"
	"resqnet/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "agencies", "profiles", "accounts"))
}

func (s *PostgresStoreSuite) owner() id.UserID {
	userID := id.NewUserID()
	email := userID.String() + "@example.org"
	_, err := s.pg.DB.ExecContext(s.ctx,
		`INSERT INTO accounts (id, email, password_hash, role) VALUES ($1, $2, 'x', 'agency')`, uuid.UUID(userID), email)
	s.Require().NoError(err)
	_, err = s.pg.DB.ExecContext(s.ctx,
		`INSERT INTO profiles (id, email, role, verified) VALUES ($1, $2, 'agency', true)`, uuid.UUID(userID), email)
	s.Require().NoError(err)
	return userID
}

func (s *PostgresStoreSuite) app(status models.Status, pan string) *models.Application {
	now := time.Now().UTC().Truncate(time.Microsecond)
	size := 4
	return &models.Application{
		ID:              id.NewApplicationID(),
		UserID:          s.owner(),
		AgencyName:      "Relief Org",
		AgencyType:      models.AgencyTypeNGO,
		TeamSize:        &size,
		ServicesOffered: []string{"rescue", "first aid"},
		PAN:             pan,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	app := s.app(models.StatusDraft, "ABCDE1234F")
	s.Require().NoError(s.store.Create(s.ctx, app))

	app.City = "Pune"
	app.Status = models.StatusSubmitted
	s.Require().NoError(s.store.Update(s.ctx, app))

	got, err := s.store.FindByOwner(s.ctx, app.UserID)
	s.Require().NoError(err)
	s.Equal("Pune", got.City)
	s.Equal(models.StatusSubmitted, got.Status)
	s.Equal([]string{"rescue", "first aid"}, got.ServicesOffered)
	s.Equal(4, *got.TeamSize)

	list, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *PostgresStoreSuite) TestUniqueIndexBackstop() {
	first := s.app(models.StatusSubmitted, "ABCDE1234F")
	s.Require().NoError(s.store.Create(s.ctx, first))

	draft := s.app(models.StatusDraft, "ABCDE1234F")
	s.Require().NoError(s.store.Create(s.ctx, draft))

	draft.Status = models.StatusSubmitted
	err := s.store.Update(s.ctx, draft)
	var conflict *IdentityConflictError
	s.Require().True(errors.As(err, &conflict))
	s.Equal(models.FieldPAN, conflict.Field)

	exists, err := s.store.ExistsForOtherOwner(s.ctx, models.FieldPAN, "ABCDE1234F", first.UserID)
	s.Require().NoError(err)
	s.True(exists)
}

func (s *PostgresStoreSuite) TestDecisionOnDraftSharingIdentityNumber() {
	s.Require().NoError(s.store.Create(s.ctx, s.app(models.StatusSubmitted, "ABCDE1234F")))
	draft := s.app(models.StatusDraft, "ABCDE1234F")
	s.Require().NoError(s.store.Create(s.ctx, draft))

	s.Require().NoError(s.store.UpdateStatus(s.ctx, draft.ID, models.StatusRejected, "duplicate PAN", time.Now()))
	s.Require().NoError(s.store.UpdateStatus(s.ctx, draft.ID, models.StatusVerified, "", time.Now()))

	got, err := s.store.FindByID(s.ctx, draft.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, got.Status)
}
