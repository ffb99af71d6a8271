package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Applications,Profiles,Mailer,AuditPublisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	adminmetrics "resqnet/internal/admin/metrics"
	"resqnet/internal/agency/models"
	authmodels "resqnet/internal/auth/models"
	"resqnet/internal/notification"
	"resqnet/internal/platform/mail"
	id "resqnet/pkg/domain"
	dErrors "resqnet/pkg/domain-errors"
	audit "resqnet/pkg/platform/audit"
	"resqnet/pkg/platform/sentinel"
	"resqnet/pkg/platform/sideeffect"
	"resqnet/pkg/requestcontext"
)

type Applications interface {
	FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	UpdateStatus(ctx context.Context, appID id.ApplicationID, status models.Status, reason string, now time.Time) error
	List(ctx context.Context) ([]models.Summary, error)
}

type Profiles interface {
	FindByID(ctx context.Context, userID id.UserID) (*authmodels.Profile, error)
}

type Mailer interface {
	Send(ctx context.Context, m mail.Message) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service applies administrator decisions. It never re-runs submission checks.
type Service struct {
	apps     Applications
	profiles Profiles
	mailer   Mailer
	auditor  AuditPublisher
	logger   *slog.Logger
	metrics  *adminmetrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithMetrics(m *adminmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func New(apps Applications, profiles Profiles, mailer Mailer, opts ...Option) *Service {
	s := &Service{
		apps:     apps,
		profiles: profiles,
		mailer:   mailer,
		logger:   slog.Default(),
		tracer:   otel.Tracer("resqnet/admin"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DecideCommand is one verdict on an application.
type DecideCommand struct {
	ApplicationID string
	Status        string
	Reason        string
}

type DecisionResult struct {
	ApplicationID id.ApplicationID
	Status        models.Status
	// Notified is true when a rejection email was handed to the mail server.
	Notified bool
	Message  string
}

// authorize requires the caller's profile to carry the admin role.
func (s *Service) authorize(ctx context.Context, caller id.UserID) error {
	profile, err := s.profiles.FindByID(ctx, caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "Unauthorized: Profile not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load caller profile")
	}
	if profile.Role != authmodels.RoleAdmin {
		s.logger.WarnContext(ctx, "non-admin attempted admin action",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", caller.String(),
			"role", string(profile.Role),
		)
		return dErrors.New(dErrors.CodeForbidden, "Unauthorized: Admin access required")
	}
	return nil
}

// Decide sets the application to verified or rejected whatever its current
// status. A rejection emails the contact address first; a failed email is logged
// and does not block the update.
func (s *Service) Decide(ctx context.Context, caller id.UserID, cmd DecideCommand) (result *DecisionResult, err error) {
	ctx, span := s.tracer.Start(ctx, "admin.Decide")
	decisionLabel := "unknown"
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		s.metrics.IncrementDecision(decisionLabel, outcome)
		span.End()
	}()

	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cmd.ApplicationID) == "" || strings.TrimSpace(cmd.Status) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Agency ID and Status are required")
	}
	appID, err := id.ParseApplicationID(strings.TrimSpace(cmd.ApplicationID))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid agency id")
	}
	decision, err := models.ParseDecision(cmd.Status)
	if err != nil {
		return nil, err
	}
	decisionLabel = string(decision)
	span.SetAttributes(
		attribute.String("admin.application_id", appID.String()),
		attribute.String("admin.decision", decisionLabel),
	)

	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "agency not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load agency")
	}

	status := decision.Status()
	reason := ""
	notified := false
	if decision == models.DecisionRejected {
		reason = strings.TrimSpace(cmd.Reason)
		notified = s.notifyRejection(ctx, app, reason)
	}

	if err := s.apps.UpdateStatus(ctx, appID, status, reason, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "agency not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update agency status")
	}

	s.logger.InfoContext(ctx, "agency status updated",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", appID.String(),
		"previous_status", app.Status.String(),
		"status", status.String(),
		"notified", notified,
	)
	s.emit(ctx, audit.Event{
		UserID:   app.UserID,
		ActorID:  caller.String(),
		Subject:  "application:" + appID.String(),
		Action:   string(audit.EventApplicationDecided),
		Decision: status.String(),
		Reason:   reason,
		Email:    app.AgencyEmail,
	})

	return &DecisionResult{
		ApplicationID: appID,
		Status:        status,
		Notified:      notified,
		Message:       fmt.Sprintf("Agency status updated to %s", status),
	}, nil
}

func (s *Service) notifyRejection(ctx context.Context, app *models.Application, reason string) bool {
	if app.AgencyEmail == "" {
		s.logger.WarnContext(ctx, "no contact email for rejection notification",
			"request_id", requestcontext.RequestID(ctx),
			"application_id", app.ID.String(),
		)
		return false
	}
	return sideeffect.Attempt(ctx, s.logger, "rejection_email", func(ctx context.Context) error {
		msg, err := notification.Rejection(app.AgencyEmail, app.AgencyName, reason)
		if err != nil {
			return err
		}
		return s.mailer.Send(ctx, msg)
	}, "application_id", app.ID.String())
}

// ListAgencies returns the summary projection of every application, newest first.
func (s *Service) ListAgencies(ctx context.Context, caller id.UserID) ([]models.Summary, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	list, err := s.apps.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list agencies")
	}
	if list == nil {
		list = []models.Summary{}
	}
	return list, nil
}

func (s *Service) GetAgency(ctx context.Context, caller id.UserID, rawID string) (*models.Application, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	appID, err := id.ParseApplicationID(strings.TrimSpace(rawID))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid agency id")
	}
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "agency not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load agency")
	}
	return app, nil
}

// QueryCommand is a free-form question to an agency's contact address.
type QueryCommand struct {
	AgencyEmail string
	AgencyName  string
	Message     string
}

// SendQuery emails an agency. Unlike rejection notices a failed send is returned.
func (s *Service) SendQuery(ctx context.Context, caller id.UserID, cmd QueryCommand) (err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
		}
		s.metrics.IncrementQuery(outcome)
	}()

	if err := s.authorize(ctx, caller); err != nil {
		return err
	}
	to := strings.TrimSpace(cmd.AgencyEmail)
	if to == "" || strings.TrimSpace(cmd.Message) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Email and message are required")
	}

	msg, err := notification.AdminQuery(to, strings.TrimSpace(cmd.AgencyName), cmd.Message)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to render query email")
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "admin query email failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeEmailDeliveryFailed, "Failed to send email. Please check SMTP configuration.")
	}

	s.emit(ctx, audit.Event{
		ActorID: caller.String(),
		Subject: "agency_email:" + to,
		Action:  string(audit.EventAdminQuerySent),
		Email:   to,
	})
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	sideeffect.Attempt(ctx, s.logger, "audit_"+event.Action, func(ctx context.Context) error {
		return s.auditor.Emit(ctx, event)
	})
}
