package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Accounts,Profiles,Roster,Mailer,TokenIssuer,TxRunner,AuditPublisher

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	authmetrics "resqnet/internal/auth/metrics"
	"resqnet/internal/auth/models"
	"resqnet/internal/auth/secrets"
	platformmail "resqnet/internal/platform/mail"
	id "resqnet/pkg/domain"
	dErrors "resqnet/pkg/domain-errors"
	audit "resqnet/pkg/platform/audit"
	"resqnet/pkg/platform/sentinel"
	"resqnet/pkg/platform/sideeffect"
	"resqnet/pkg/platform/tx"
	"resqnet/pkg/requestcontext"
)

// Accounts is the credential issuer.
type Accounts interface {
	Create(ctx context.Context, acct *models.Account) error
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

type Profiles interface {
	Create(ctx context.Context, p *models.Profile) error
	Update(ctx context.Context, p *models.Profile) error
	FindByID(ctx context.Context, userID id.UserID) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
}

type Roster interface {
	FindByEmail(ctx context.Context, email string) ([]models.RosterEntry, error)
	LinkUser(ctx context.Context, email string, userID id.UserID) error
}

type Mailer interface {
	Send(ctx context.Context, m platformmail.Message) error
}

type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, email, role string, expiresIn time.Duration) (string, error)
}

// TxRunner groups the profile write with the verification email.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const (
	defaultOTPTTL   = 10 * time.Minute
	defaultTokenTTL = time.Hour
)

// Service takes an account from signup through OTP activation to login.
type Service struct {
	accounts Accounts
	profiles Profiles
	roster   Roster
	mailer   Mailer
	tokens   TokenIssuer
	tx       TxRunner
	auditor  AuditPublisher
	logger   *slog.Logger
	metrics  *authmetrics.Metrics
	tracer   trace.Tracer

	otpTTL      time.Duration
	tokenTTL    time.Duration
	generateOTP func() (string, error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithMetrics(m *authmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithTxRunner(r TxRunner) Option {
	return func(s *Service) { s.tx = r }
}

func WithOTPTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithOTPGenerator replaces the random code source.
func WithOTPGenerator(fn func() (string, error)) Option {
	return func(s *Service) { s.generateOTP = fn }
}

func New(accounts Accounts, profiles Profiles, roster Roster, mailer Mailer, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		accounts:    accounts,
		profiles:    profiles,
		roster:      roster,
		mailer:      mailer,
		tokens:      tokens,
		tx:          tx.NopRunner{},
		logger:      slog.Default(),
		tracer:      otel.Tracer("resqnet/auth"),
		otpTTL:      defaultOTPTTL,
		tokenTTL:    defaultTokenTTL,
		generateOTP: models.GenerateOTP,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup creates the credential an activation request is checked against.
func (s *Service) Signup(ctx context.Context, email, password, rawRole string) (*models.Account, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "email is not a valid address")
	}
	role, err := models.ParseRole(rawRole)
	if err != nil {
		return nil, err
	}
	hash, err := secrets.Hash(password)
	if err != nil {
		return nil, err
	}

	acct := &models.Account{
		ID:           id.NewUserID(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	s.logger.InfoContext(ctx, "account created",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", acct.ID.String(),
		"role", string(role),
	)
	s.emit(ctx, audit.Event{
		UserID:  acct.ID,
		Subject: "account:" + acct.ID.String(),
		Action:  string(audit.EventAccountCreated),
		Email:   email,
	})
	return acct, nil
}

// LoginResult carries the access token of a verified profile.
type LoginResult struct {
	AccessToken string
	ExpiresIn   time.Duration
	Profile     *models.Profile
}

// Login is gated on a verified profile before the password is checked.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Email and password are required")
	}

	result, err := s.login(ctx, email, password)
	if err != nil {
		s.metrics.IncrementLogin(string(dErrors.CodeOf(err)))
		s.emit(ctx, audit.Event{
			Subject: "account:" + email,
			Action:  string(audit.EventLoginFailed),
			Reason:  err.Error(),
			Email:   email,
		})
		return nil, err
	}

	s.metrics.IncrementLogin("ok")
	s.emit(ctx, audit.Event{
		UserID:  result.Profile.ID,
		Subject: "account:" + result.Profile.ID.String(),
		Action:  string(audit.EventLoginSucceeded),
		Email:   email,
	})
	return result, nil
}

func (s *Service) login(ctx context.Context, email, password string) (*LoginResult, error) {
	profile, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	if !profile.Verified {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "OTP not verified")
	}

	acct, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "Invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if err := secrets.Verify(password, acct.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify credentials")
	}

	token, err := s.tokens.GenerateAccessToken(profile.ID, profile.Email, string(profile.Role), s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	return &LoginResult{AccessToken: token, ExpiresIn: s.tokenTTL, Profile: profile}, nil
}

// Me returns the caller's profile.
func (s *Service) Me(ctx context.Context, userID id.UserID) (*models.Profile, error) {
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return profile, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	sideeffect.Attempt(ctx, s.logger, "audit_"+event.Action, func(ctx context.Context) error {
		return s.auditor.Emit(ctx, event)
	})
}
