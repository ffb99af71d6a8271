package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Uniqueness,Documents,AuditPublisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	agencymetrics "resqnet/internal/agency/metrics"
	"resqnet/internal/agency/models"
	agencystore "resqnet/internal/agency/store"
	"resqnet/internal/agency/uniqueness"
	"resqnet/internal/agency/validation"
	"resqnet/internal/documents"
	id "resqnet/pkg/domain"
	dErrors "resqnet/pkg/domain-errors"
	audit "resqnet/pkg/platform/audit"
	"resqnet/pkg/platform/sentinel"
	"resqnet/pkg/platform/sideeffect"
	platformstrings "resqnet/pkg/platform/strings"
	"resqnet/pkg/requestcontext"
)

type Store interface {
	FindByOwner(ctx context.Context, owner id.UserID) (*models.Application, error)
	Create(ctx context.Context, app *models.Application) error
	Update(ctx context.Context, app *models.Application) error
}

type Uniqueness interface {
	CheckAll(ctx context.Context, owner id.UserID, claims []uniqueness.Claim) error
}

type Documents interface {
	ReplaceAll(ctx context.Context, reqs []documents.Request, owner id.UserID) ([]documents.Replacement, error)
	Discard(ctx context.Context, urls ...string)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// SaveCommand is one owner save. Uploads holds the slots that receive a new file.
// ContactEmail fills agency_email when the application has none yet.
type SaveCommand struct {
	Draft        bool
	Fields       models.Fields
	Uploads      map[models.DocumentSlot]*documents.Upload
	ContactEmail string
}

type SaveResult struct {
	Application *models.Application
	Message     string
}

// CurrentApplication is what an owner sees of their registration. Application is
// nil when Status is unregistered.
type CurrentApplication struct {
	Status      models.Status
	Application *models.Application
}

// Service runs the owner side of the registration lifecycle.
type Service struct {
	store      Store
	uniqueness Uniqueness
	documents  Documents
	logger     *slog.Logger
	auditor    AuditPublisher
	metrics    *agencymetrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithMetrics(m *agencymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func New(store Store, checker Uniqueness, docs Documents, opts ...Option) *Service {
	s := &Service{
		store:      store,
		uniqueness: checker,
		documents:  docs,
		logger:     slog.Default(),
		tracer:     otel.Tracer("resqnet/agency"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Current(ctx context.Context, owner id.UserID) (*CurrentApplication, error) {
	app, err := s.store.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &CurrentApplication{Status: models.StatusUnregistered}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	return &CurrentApplication{Status: app.Status, Application: app}, nil
}

// Save creates or updates the owner's application as a draft or a submission.
//
// Checks run in order: owner transition, submission validation, identity
// uniqueness, document uploads. Nothing is persisted when any of them fails, and
// blobs uploaded by a save that then fails to persist are deleted. Superseded
// blobs are deleted only after the new URLs are stored.
func (s *Service) Save(ctx context.Context, owner id.UserID, cmd SaveCommand) (result *SaveResult, err error) {
	start := time.Now()
	kind := "submit"
	target := models.StatusSubmitted
	if cmd.Draft {
		kind = "draft"
		target = models.StatusDraft
	}

	ctx, span := s.tracer.Start(ctx, "agency.Save", trace.WithAttributes(
		attribute.String("agency.save_kind", kind),
	))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		s.metrics.ObserveSave(kind, outcome, start)
		span.End()
	}()

	existing, err := s.store.FindByOwner(ctx, owner)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}

	current := models.StatusUnregistered
	if existing != nil {
		current = existing.Status
	}
	if !current.CanOwnerTransitionTo(target) {
		return nil, dErrors.New(dErrors.CodeConflict, "application is "+current.String()+" and can no longer be edited")
	}

	now := requestcontext.Now(ctx)
	app := existing
	if app == nil {
		app = &models.Application{
			ID:        id.NewApplicationID(),
			UserID:    owner,
			CreatedAt: now,
		}
	}
	app.ApplyFields(cmd.Fields)
	app.ServicesOffered = platformstrings.DedupeAndTrim(app.ServicesOffered)
	if app.AgencyEmail == "" {
		app.AgencyEmail = cmd.ContactEmail
	}
	app.Status = target
	app.UpdatedAt = now
	if target == models.StatusSubmitted {
		app.RejectionReason = ""
	}
	span.SetAttributes(attribute.String("agency.application_id", app.ID.String()))

	if !cmd.Draft {
		if err := s.checkSubmission(ctx, app, cmd.Uploads); err != nil {
			return nil, err
		}
	}

	results, err := s.documents.ReplaceAll(ctx, uploadRequests(app, cmd.Uploads), owner)
	if err != nil {
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUploadFailed, "failed to upload documents")
	}
	for i, slot := range models.DocumentSlots {
		app.SetDocumentURL(slot, results[i].URL)
	}

	if err := s.persist(ctx, app, existing == nil); err != nil {
		s.documents.Discard(ctx, documents.Uploaded(results)...)
		return nil, err
	}
	s.documents.Discard(ctx, documents.Superseded(results)...)

	s.logger.InfoContext(ctx, "agency application saved",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", app.ID.String(),
		"status", app.Status.String(),
	)
	action := audit.EventApplicationSubmitted
	message := "Application submitted"
	if cmd.Draft {
		action = audit.EventApplicationDraftSaved
		message = "Draft saved"
	}
	s.emit(ctx, audit.Event{
		UserID:   owner,
		Subject:  "application:" + app.ID.String(),
		Action:   string(action),
		Decision: app.Status.String(),
		Email:    app.AgencyEmail,
	})

	return &SaveResult{Application: app, Message: message}, nil
}

func (s *Service) checkSubmission(ctx context.Context, app *models.Application, uploads map[models.DocumentSlot]*documents.Upload) error {
	pending := make([]models.DocumentSlot, 0, len(uploads))
	for _, slot := range models.DocumentSlots {
		if uploads[slot] != nil {
			pending = append(pending, slot)
		}
	}
	if issues := validation.ValidateSubmission(validation.Submission{Application: app, Pending: pending}); len(issues) > 0 {
		return dErrors.New(dErrors.CodeValidation, "Validation failed").WithIssues(issues)
	}

	if err := s.uniqueness.CheckAll(ctx, app.UserID, uniqueness.ClaimsOf(app)); err != nil {
		if de, ok := dErrors.As(err); ok && de.Code == dErrors.CodeConflict {
			s.recordConflict(ctx, app, de)
		}
		return err
	}
	return nil
}

func (s *Service) persist(ctx context.Context, app *models.Application, insert bool) error {
	var err error
	if insert {
		err = s.store.Create(ctx, app)
	} else {
		err = s.store.Update(ctx, app)
	}
	if err == nil {
		return nil
	}

	var identity *agencystore.IdentityConflictError
	switch {
	case errors.As(err, &identity):
		conflict := uniqueness.ConflictError(identity.Field)
		de, _ := dErrors.As(conflict)
		s.recordConflict(ctx, app, de)
		return conflict
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "an application already exists for this account")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeConflict, "application was removed while saving")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save application")
}

func (s *Service) recordConflict(ctx context.Context, app *models.Application, de *dErrors.Error) {
	field := ""
	if len(de.Issues) > 0 {
		field = de.Issues[0]
	}
	s.metrics.IncrementConflict(field)
	s.emit(ctx, audit.Event{
		UserID:  app.UserID,
		Subject: "application:" + app.ID.String(),
		Action:  string(audit.EventIdentityConflict),
		Reason:  de.Message,
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	sideeffect.Attempt(ctx, s.logger, "audit_"+event.Action, func(ctx context.Context) error {
		return s.auditor.Emit(ctx, event)
	})
}

func uploadRequests(app *models.Application, uploads map[models.DocumentSlot]*documents.Upload) []documents.Request {
	reqs := make([]documents.Request, 0, len(models.DocumentSlots))
	for _, slot := range models.DocumentSlots {
		reqs = append(reqs, documents.Request{
			Folder:      slot.Folder(),
			ExistingURL: app.DocumentURL(slot),
			Upload:      uploads[slot],
		})
	}
	return reqs
}
