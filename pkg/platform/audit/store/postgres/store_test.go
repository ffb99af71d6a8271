package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "resqnet/pkg/domain"
	audit "resqnet/pkg/platform/audit"
)

func TestAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	userID := id.NewUserID()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_events")).
		WithArgs(sqlmock.AnyArg(), "compliance", at, userID.String(), "application:1",
			"application_decided", "rejected", "Requirements not met.", "", "req-1", "admin-1", "unknown").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = New(db).Append(context.Background(), audit.Event{
		Timestamp: at,
		UserID:    userID,
		Subject:   "application:1",
		Action:    string(audit.EventApplicationDecided),
		Decision:  "rejected",
		Reason:    "Requirements not met.",
		RequestID: "req-1",
		ActorID:   "admin-1",
		Client:    "unknown",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_WrapsDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_events").WillReturnError(errors.New("relation does not exist"))

	err = New(db).Append(context.Background(), audit.Event{Action: "otp_issued"})
	assert.ErrorContains(t, err, "insert audit event")
}
