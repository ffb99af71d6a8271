package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	adminmetrics "resqnet/internal/admin/metrics"
	"resqnet/internal/agency/models"
	agencystore "resqnet/internal/agency/store"
	authmodels "resqnet/internal/auth/models"
	"resqnet/internal/auth/store/profile"
	"resqnet/internal/platform/mail"
	id "resqnet/pkg/domain"
	dErrors "resqnet/pkg/domain-errors"
	audit "resqnet/pkg/platform/audit"
	"resqnet/pkg/platform/audit/publisher"
	auditmemory "resqnet/pkg/platform/audit/store/memory"
	"resqnet/pkg/requestcontext"
)

type DecideSuite struct {
	suite.Suite
	apps     *agencystore.InMemoryStore
	profiles *profile.InMemoryStore
	mailer   *mail.Recorder
	audits   *auditmemory.InMemoryStore
	metrics  *adminmetrics.Metrics
	service  *Service

	admin  id.UserID
	agency id.UserID
	app    *models.Application
	ctx    context.Context
}

func TestDecideSuite(t *testing.T) {
	suite.Run(t, new(DecideSuite))
}

func (s *DecideSuite) SetupTest() {
	s.apps = agencystore.NewInMemory()
	s.profiles = profile.NewInMemory()
	s.mailer = mail.NewRecorder()
	s.audits = auditmemory.NewInMemoryStore()
	s.metrics = adminmetrics.New(prometheus.NewRegistry())
	s.service = New(s.apps, s.profiles, s.mailer,
		WithAuditPublisher(publisher.NewPublisher(s.audits)),
		WithMetrics(s.metrics),
	)
	now := time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), now)

	s.admin = s.addProfile("root@resqnet.org", authmodels.RoleAdmin)
	s.agency = s.addProfile("ops@relief.org", authmodels.RoleAgency)
	s.app = &models.Application{
		ID:          id.NewApplicationID(),
		UserID:      s.agency,
		AgencyEmail: "ops@relief.org",
		AgencyName:  "Relief Org",
		AgencyType:  models.AgencyTypeNGO,
		Status:      models.StatusSubmitted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Require().NoError(s.apps.Create(context.Background(), s.app))
}

func (s *DecideSuite) addProfile(email string, role authmodels.Role) id.UserID {
	userID := id.NewUserID()
	p := &authmodels.Profile{ID: userID, Email: email, Role: role, Verified: true}
	s.Require().NoError(s.profiles.Create(context.Background(), p))
	return userID
}

func (s *DecideSuite) stored() *models.Application {
	app, err := s.apps.FindByID(context.Background(), s.app.ID)
	s.Require().NoError(err)
	return app
}

func (s *DecideSuite) TestAuthorization() {
	s.Run("non-admin is forbidden", func() {
		_, err := s.service.Decide(s.ctx, s.agency, DecideCommand{ApplicationID: s.app.ID.String(), Status: "verified"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal(models.StatusSubmitted, s.stored().Status)
	})

	s.Run("caller without profile is forbidden", func() {
		_, err := s.service.Decide(s.ctx, id.NewUserID(), DecideCommand{ApplicationID: s.app.ID.String(), Status: "verified"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("listing and fetching need admin too", func() {
		_, err := s.service.ListAgencies(s.ctx, s.agency)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		_, err = s.service.GetAgency(s.ctx, s.agency, s.app.ID.String())
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *DecideSuite) TestInputErrors() {
	_, err := s.service.Decide(s.ctx, s.admin, DecideCommand{Status: "verified"})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.service.Decide(s.ctx, s.admin, DecideCommand{ApplicationID: s.app.ID.String()})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.service.Decide(s.ctx, s.admin, DecideCommand{ApplicationID: "nope", Status: "verified"})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.service.Decide(s.ctx, s.admin, DecideCommand{ApplicationID: s.app.ID.String(), Status: "under_review"})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.service.Decide(s.ctx, s.admin, DecideCommand{ApplicationID: id.NewApplicationID().String(), Status: "verified"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *DecideSuite) TestReject() {
	res, err := s.service.Decide(s.ctx, s.admin, DecideCommand{ApplicationID: s.app.ID.String(), Status: "rejected"})
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, res.Status)
	s.True(res.Notified)

	msg, ok := s.mailer.Last("ops@relief.org")
	s.Require().True(ok)
	s.Equal("Agency Registration Update: Relief Org", msg.Subject)
	s.Contains(msg.HTMLBody, "Requirements not met.")

	s.Equal(models.StatusRejected, s.stored().Status)

	events := s.audits.ListByAction(context.Background(), audit.EventApplicationDecided)
	s.Require().Len(events, 1)
	s.Equal(s.admin.String(), events[0].ActorID)
	s.Equal(s.agency, events[0].UserID)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Decisions.WithLabelValues("rejected", "ok")))
}

func (s *DecideSuite) TestRejectWithReasonStoresIt() {
	_, err := s.service.Decide(s.ctx, s.admin, DecideCommand{ApplicationID: s.app.ID.String(), Status: "rejected", Reason: "PAN card unreadable"})
	s.Require().NoError(err)

	s.Equal("PAN card unreadable", s.stored().RejectionReason)
	msg, _ := s.mailer.Last("ops@relief.org")
	s.Contains(msg.HTMLBody, "PAN card unreadable")
}

func (s *DecideSuite) TestRejectionEmailFailureDoesNotBlock() {
	s.mailer.FailWith(errors.New("smtp down"))

	res, err := s.service.Decide(s.ctx, s.admin, DecideCommand{ApplicationID: s.app.ID.String(), Status: "rejected"})
	s.Require().NoError(err)
	s.False(res.Notified)
	s.Equal(models.StatusRejected, s.stored().Status)
}

func (s *DecideSuite) TestApproveAliasFromAnyStatus() {
	draft := &models.Application{ID: id.NewApplicationID(), UserID: id.NewUserID(), Status: models.StatusDraft}
	s.Require().NoError(s.apps.Create(context.Background(), draft))

	res, err := s.service.Decide(s.ctx, s.admin, DecideCommand{ApplicationID: draft.ID.String(), Status: "approved"})
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, res.Status)
	s.Equal("Agency status updated to verified", res.Message)
	s.Empty(s.mailer.Sent())

	app, err := s.apps.FindByID(context.Background(), draft.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, app.Status)
}

func (s *DecideSuite) TestDecisionOnDraftSharingIdentityNumber() {
	submitted := s.stored()
	submitted.PAN = "ABCDE1234F"
	s.Require().NoError(s.apps.Update(context.Background(), submitted))

	owner := s.addProfile("desk@aid.org", authmodels.RoleAgency)
	draft := &models.Application{
		ID:          id.NewApplicationID(),
		UserID:      owner,
		AgencyEmail: "desk@aid.org",
		AgencyName:  "Aid Desk",
		PAN:         "ABCDE1234F",
		Status:      models.StatusDraft,
	}
	s.Require().NoError(s.apps.Create(context.Background(), draft))

	res, err := s.service.Decide(s.ctx, s.admin, DecideCommand{ApplicationID: draft.ID.String(), Status: "rejected", Reason: "Duplicate PAN"})
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, res.Status)
	s.Len(s.mailer.Sent(), 1)

	_, err = s.service.Decide(s.ctx, s.admin, DecideCommand{ApplicationID: draft.ID.String(), Status: "verified"})
	s.Require().NoError(err)

	app, err := s.apps.FindByID(context.Background(), draft.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, app.Status)
	s.Empty(app.RejectionReason)
}

func (s *DecideSuite) TestListAndGet() {
	list, err := s.service.ListAgencies(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("Relief Org", list[0].AgencyName)

	app, err := s.service.GetAgency(s.ctx, s.admin, s.app.ID.String())
	s.Require().NoError(err)
	s.Equal("ops@relief.org", app.AgencyEmail)

	_, err = s.service.GetAgency(s.ctx, s.admin, id.NewApplicationID().String())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *DecideSuite) TestSendQuery() {
	s.Run("requires email and message", func() {
		err := s.service.SendQuery(s.ctx, s.admin, QueryCommand{AgencyEmail: "ops@relief.org"})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("sends with a fallback subject", func() {
		err := s.service.SendQuery(s.ctx, s.admin, QueryCommand{AgencyEmail: "ops@relief.org", Message: "Please re-upload\nthe license"})
		s.Require().NoError(err)
		msg, ok := s.mailer.Last("ops@relief.org")
		s.Require().True(ok)
		s.Equal("Query from Admin regarding Agency Registration", msg.Subject)
		s.Len(s.audits.ListByAction(context.Background(), audit.EventAdminQuerySent), 1)
	})

	s.Run("surfaces delivery failure", func() {
		s.mailer.FailWith(errors.New("auth failed"))
		err := s.service.SendQuery(s.ctx, s.admin, QueryCommand{AgencyEmail: "ops@relief.org", AgencyName: "Relief Org", Message: "hi"})
		s.True(dErrors.HasCode(err, dErrors.CodeEmailDeliveryFailed))
	})

	s.Run("non-admin is forbidden", func() {
		err := s.service.SendQuery(s.ctx, s.agency, QueryCommand{AgencyEmail: "ops@relief.org", Message: "hi"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
