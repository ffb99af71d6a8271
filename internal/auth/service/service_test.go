package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	authmetrics "resqnet/internal/auth/metrics"
	"resqnet/internal/auth/models"
	"resqnet/internal/auth/store/account"
	"resqnet/internal/auth/store/profile"
	"resqnet/internal/auth/store/roster"
	jwttoken "resqnet/internal/jwt_token"
	"resqnet/internal/platform/mail"
	dErrors "resqnet/pkg/domain-errors"
	audit "resqnet/pkg/platform/audit"
	"resqnet/pkg/platform/audit/publisher"
	auditmemory "resqnet/pkg/platform/audit/store/memory"
	"resqnet/pkg/requestcontext"
)

// ActivationSuite runs activation and login against in-memory adapters with a
// scripted OTP sequence and a movable clock.
type ActivationSuite struct {
	suite.Suite
	accounts *account.InMemoryStore
	profiles *profile.InMemoryStore
	roster   *roster.InMemoryStore
	mailer   *mail.Recorder
	audits   *auditmemory.InMemoryStore
	tokens   *jwttoken.JWTService
	metrics  *authmetrics.Metrics
	service  *Service

	codes []string
	now   time.Time
}

func TestActivationSuite(t *testing.T) {
	suite.Run(t, new(ActivationSuite))
}

func (s *ActivationSuite) SetupTest() {
	s.accounts = account.NewInMemory()
	s.profiles = profile.NewInMemory()
	s.roster = roster.NewInMemory()
	s.mailer = mail.NewRecorder()
	s.audits = auditmemory.NewInMemoryStore()
	s.tokens = jwttoken.NewJWTService("test-key", "resqnet-test")
	s.metrics = authmetrics.New(prometheus.NewRegistry())
	s.codes = []string{"111111", "222222", "333333"}
	s.now = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

	s.service = New(s.accounts, s.profiles, s.roster, s.mailer, s.tokens,
		WithAuditPublisher(publisher.NewPublisher(s.audits)),
		WithMetrics(s.metrics),
		WithOTPGenerator(func() (string, error) {
			code := s.codes[0]
			s.codes = s.codes[1:]
			return code, nil
		}),
	)
}

func (s *ActivationSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ActivationSuite) signup(email, role string) *models.Account {
	acct, err := s.service.Signup(s.ctx(), email, "s3cret-pass", role)
	s.Require().NoError(err)
	return acct
}

func (s *ActivationSuite) requireCode(err error, code dErrors.Code) *dErrors.Error {
	s.Require().Error(err)
	de, ok := dErrors.As(err)
	s.Require().True(ok, "expected domain error, got %v", err)
	s.Equal(code, de.Code)
	return de
}

func (s *ActivationSuite) TestSignup() {
	s.Run("normalizes email and hashes password", func() {
		acct := s.signup(" Ops@Relief.org ", "agency")
		s.Equal("ops@relief.org", acct.Email)
		s.NotEqual("s3cret-pass", acct.PasswordHash)
		s.Len(s.audits.ListByAction(context.Background(), audit.EventAccountCreated), 1)
	})

	s.Run("duplicate email conflicts", func() {
		_, err := s.service.Signup(s.ctx(), "ops@relief.org", "another-pass", "agency")
		s.requireCode(err, dErrors.CodeConflict)
	})

	s.Run("rejects missing fields and bad roles", func() {
		_, err := s.service.Signup(s.ctx(), "", "pw", "agency")
		s.requireCode(err, dErrors.CodeBadRequest)
		_, err = s.service.Signup(s.ctx(), "not-an-email", "s3cret-pass", "agency")
		s.requireCode(err, dErrors.CodeValidation)
		_, err = s.service.Signup(s.ctx(), "x@y.org", "s3cret-pass", "pirate")
		s.requireCode(err, dErrors.CodeValidation)
	})
}

func (s *ActivationSuite) TestRequestCode() {
	acct := s.signup("ops@relief.org", "agency")

	s.Run("new profile gets a fresh code by email", func() {
		res, err := s.service.RequestCode(s.ctx(), "ops@relief.org", "agency")
		s.Require().NoError(err)
		s.Equal(models.StatusNewProfile, res.Status)

		p, err := s.profiles.FindByID(context.Background(), acct.ID)
		s.Require().NoError(err)
		s.False(p.Verified)
		s.Equal("111111", p.OTP)
		s.Require().NotNil(p.OTPExpiresAt)
		s.Equal(s.now.Add(10*time.Minute), *p.OTPExpiresAt)

		msg, ok := s.mailer.Last("ops@relief.org")
		s.Require().True(ok)
		s.Contains(msg.HTMLBody, "111111")
		s.Contains(msg.TextBody, "10 minutes")
	})

	s.Run("valid code is resent unchanged", func() {
		s.now = s.now.Add(5 * time.Minute)
		res, err := s.service.RequestCode(s.ctx(), "ops@relief.org", "agency")
		s.Require().NoError(err)
		s.Equal(models.StatusOTPResent, res.Status)

		p, _ := s.profiles.FindByID(context.Background(), acct.ID)
		s.Equal("111111", p.OTP)
		s.Len(s.mailer.Sent(), 2)
	})

	s.Run("expired code is regenerated and role follows the request", func() {
		s.now = s.now.Add(6 * time.Minute)
		res, err := s.service.RequestCode(s.ctx(), "ops@relief.org", "coordinator")
		s.Require().NoError(err)
		s.Equal(models.StatusOTPSent, res.Status)

		p, _ := s.profiles.FindByID(context.Background(), acct.ID)
		s.Equal("222222", p.OTP)
		s.Equal(models.RoleCoordinator, p.Role)
		s.Equal(s.now.Add(10*time.Minute), *p.OTPExpiresAt)
	})

	s.Run("verified profile is told to log in", func() {
		_, err := s.service.VerifyCode(s.ctx(), "ops@relief.org", "222222")
		s.Require().NoError(err)

		_, err = s.service.RequestCode(s.ctx(), "ops@relief.org", "agency")
		de := s.requireCode(err, dErrors.CodeConflict)
		s.Equal(models.StatusAlreadyVerified, de.Status)
	})

	s.Run("unknown account is not found", func() {
		_, err := s.service.RequestCode(s.ctx(), "ghost@relief.org", "agency")
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("missing email or role is a bad request", func() {
		_, err := s.service.RequestCode(s.ctx(), "", "agency")
		s.requireCode(err, dErrors.CodeBadRequest)
		_, err = s.service.RequestCode(s.ctx(), "ops@relief.org", "")
		s.requireCode(err, dErrors.CodeBadRequest)
	})

	s.Equal(1.0, testutil.ToFloat64(s.metrics.CodeRequests.WithLabelValues(models.StatusNewProfile)))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CodeRequests.WithLabelValues(models.StatusOTPResent)))
}

func (s *ActivationSuite) TestRequestCodeStaffRoster() {
	s.Require().NoError(s.roster.Add(context.Background(), models.RosterEntry{Email: "medic@relief.org", Role: models.RoleVolunteer}))
	acct := s.signup("medic@relief.org", "volunteer")

	s.Run("listed staff cannot pick another role", func() {
		_, err := s.service.RequestCode(s.ctx(), "medic@relief.org", "coordinator")
		de := s.requireCode(err, dErrors.CodeBadRequest)
		s.Equal(models.StatusRoleMismatch, de.Status)
		s.Contains(de.Message, "volunteer")
		s.Empty(s.mailer.Sent())
		s.Len(s.audits.ListByAction(context.Background(), audit.EventRoleMismatch), 1)
	})

	s.Run("matching role links the roster entry to the new profile", func() {
		res, err := s.service.RequestCode(s.ctx(), "medic@relief.org", "volunteer")
		s.Require().NoError(err)
		s.Equal(models.StatusNewProfile, res.Status)

		entries, err := s.roster.FindByEmail(context.Background(), "medic@relief.org")
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Require().NotNil(entries[0].UserID)
		s.Equal(acct.ID, *entries[0].UserID)
	})
}

func (s *ActivationSuite) TestRequestCodeEmailFailure() {
	s.signup("ops@relief.org", "agency")
	s.mailer.FailWith(errors.New("smtp down"))

	_, err := s.service.RequestCode(s.ctx(), "ops@relief.org", "agency")
	s.requireCode(err, dErrors.CodeEmailDeliveryFailed)
	s.Empty(s.audits.ListByAction(context.Background(), audit.EventProfileCreated))
}

func (s *ActivationSuite) TestVerifyCode() {
	s.signup("ops@relief.org", "agency")
	_, err := s.service.RequestCode(s.ctx(), "ops@relief.org", "agency")
	s.Require().NoError(err)

	s.Run("unknown profile must register again", func() {
		_, err := s.service.VerifyCode(s.ctx(), "ghost@relief.org", "111111")
		de := s.requireCode(err, dErrors.CodeNotFound)
		s.Equal(models.ActionRegisterAgain, de.Action)
	})

	s.Run("wrong code may be retried", func() {
		_, err := s.service.VerifyCode(s.ctx(), "ops@relief.org", "999999")
		de := s.requireCode(err, dErrors.CodeUnauthorized)
		s.Equal(models.ActionRetry, de.Action)
	})

	s.Run("missing code is a bad request", func() {
		_, err := s.service.VerifyCode(s.ctx(), "ops@relief.org", "")
		s.requireCode(err, dErrors.CodeBadRequest)
	})

	s.Run("expired code must register again", func() {
		late := requestcontext.WithTime(context.Background(), s.now.Add(10*time.Minute+time.Second))
		_, err := s.service.VerifyCode(late, "ops@relief.org", "111111")
		de := s.requireCode(err, dErrors.CodeGone)
		s.Equal(models.ActionRegisterAgain, de.Action)
	})

	s.Run("correct code within the window verifies", func() {
		res, err := s.service.VerifyCode(s.ctx(), "OPS@relief.org", "111111")
		s.Require().NoError(err)
		s.Equal(models.ActionLogin, res.Action)

		p, err := s.profiles.FindByEmail(context.Background(), "ops@relief.org")
		s.Require().NoError(err)
		s.True(p.Verified)
		s.Empty(p.OTP)
		s.Nil(p.OTPExpiresAt)
	})

	s.Run("second verification reports already verified", func() {
		_, err := s.service.VerifyCode(s.ctx(), "ops@relief.org", "111111")
		de := s.requireCode(err, dErrors.CodeConflict)
		s.Equal(models.ActionLogin, de.Action)
		s.Equal(models.StatusAlreadyVerified, de.Status)
	})
}

func (s *ActivationSuite) TestLogin() {
	acct := s.signup("ops@relief.org", "agency")

	s.Run("missing profile is not found", func() {
		_, err := s.service.Login(s.ctx(), "ops@relief.org", "s3cret-pass")
		s.requireCode(err, dErrors.CodeNotFound)
	})

	_, err := s.service.RequestCode(s.ctx(), "ops@relief.org", "agency")
	s.Require().NoError(err)

	s.Run("unverified profile cannot log in", func() {
		_, err := s.service.Login(s.ctx(), "ops@relief.org", "s3cret-pass")
		de := s.requireCode(err, dErrors.CodeUnauthorized)
		s.Equal("OTP not verified", de.Message)
	})

	_, err = s.service.VerifyCode(s.ctx(), "ops@relief.org", "111111")
	s.Require().NoError(err)

	s.Run("wrong password is rejected", func() {
		_, err := s.service.Login(s.ctx(), "ops@relief.org", "not-the-pass")
		de := s.requireCode(err, dErrors.CodeUnauthorized)
		s.Equal("Invalid credentials", de.Message)
	})

	s.Run("verified profile receives a token carrying its role", func() {
		res, err := s.service.Login(s.ctx(), "ops@relief.org", "s3cret-pass")
		s.Require().NoError(err)
		s.Equal(acct.ID, res.Profile.ID)

		claims, err := s.tokens.ValidateToken(res.AccessToken)
		s.Require().NoError(err)
		s.Equal(acct.ID.String(), claims.UserID)
		s.Equal("agency", claims.Role)
		s.Equal("ops@relief.org", claims.Email)
	})

	s.Run("me returns the profile", func() {
		p, err := s.service.Me(s.ctx(), acct.ID)
		s.Require().NoError(err)
		s.True(p.Verified)
		s.True(strings.HasPrefix(p.Email, "ops@"))
	})

	s.Len(s.audits.ListByAction(context.Background(), audit.EventLoginFailed), 3)
	s.Len(s.audits.ListByAction(context.Background(), audit.EventLoginSucceeded), 1)
}
