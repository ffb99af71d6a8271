// Package handler exposes the owner side of agency registration over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"resqnet/internal/agency/models"
	"resqnet/internal/agency/service"
	id "resqnet/pkg/domain"
	"resqnet/pkg/platform/httputil"
	authmw "resqnet/pkg/platform/middleware/auth"
	"resqnet/pkg/requestcontext"
)

// RoleAgency is the only role allowed on these routes.
const RoleAgency = "agency"

// formOverhead covers the scalar fields sent alongside the documents.
const formOverhead = 1 << 20

type Service interface {
	Current(ctx context.Context, owner id.UserID) (*service.CurrentApplication, error)
	Save(ctx context.Context, owner id.UserID, cmd service.SaveCommand) (*service.SaveResult, error)
}

type Handler struct {
	svc       Service
	logger    *slog.Logger
	validator authmw.JWTValidator
	maxUpload int64
}

// New builds the handler. maxDocumentSize bounds each uploaded file; the whole
// request may carry one file per document slot.
func New(svc Service, logger *slog.Logger, validator authmw.JWTValidator, maxDocumentSize int64) *Handler {
	return &Handler{
		svc:       svc,
		logger:    logger,
		validator: validator,
		maxUpload: maxDocumentSize,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(h.validator, h.logger))
		r.Use(authmw.RequireRole(h.logger, RoleAgency))
		r.Get("/agency/registration", h.HandleCurrent)
		r.Post("/agency/registration", h.HandleSave)
	})
}

type currentResponse struct {
	Status models.Status       `json:"status"`
	Agency *models.Application `json:"agency"`
}

type saveResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Agency  *models.Application `json:"agency"`
}

// HandleCurrent returns the caller's application, or status "unregistered".
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	owner := requestcontext.UserID(ctx)

	current, err := h.svc.Current(ctx, owner)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load application",
			"request_id", requestID,
			"user_id", owner.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, currentResponse{
		Status: current.Status,
		Agency: current.Application,
	})
}

// HandleSave accepts a multipart draft save or submission.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	owner := requestcontext.UserID(ctx)

	limit := int64(len(models.DocumentSlots))*h.maxUpload + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	req, err := parseSaveRequest(r, formOverhead)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid registration form",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	defer req.Close()

	result, err := h.svc.Save(ctx, owner, service.SaveCommand{
		Draft:        req.Draft,
		Fields:       req.Fields,
		Uploads:      req.Uploads,
		ContactEmail: requestcontext.Email(ctx),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "registration save failed",
			"request_id", requestID,
			"user_id", owner.String(),
			"draft", req.Draft,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, saveResponse{
		Success: true,
		Message: result.Message,
		Agency:  result.Application,
	})
}
