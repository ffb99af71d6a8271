// Package handler exposes the administrator review endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"resqnet/internal/admin/service"
	"resqnet/internal/agency/models"
	id "resqnet/pkg/domain"
	"resqnet/pkg/platform/httputil"
	authmw "resqnet/pkg/platform/middleware/auth"
	"resqnet/pkg/requestcontext"
)

// RoleAdmin gates every route in this package at the token level; the service
// re-checks the stored profile.
const RoleAdmin = "admin"

type Service interface {
	Decide(ctx context.Context, caller id.UserID, cmd service.DecideCommand) (*service.DecisionResult, error)
	ListAgencies(ctx context.Context, caller id.UserID) ([]models.Summary, error)
	GetAgency(ctx context.Context, caller id.UserID, rawID string) (*models.Application, error)
	SendQuery(ctx context.Context, caller id.UserID, cmd service.QueryCommand) error
}

type Handler struct {
	svc       Service
	logger    *slog.Logger
	validator authmw.JWTValidator
}

func New(svc Service, logger *slog.Logger, validator authmw.JWTValidator) *Handler {
	return &Handler{svc: svc, logger: logger, validator: validator}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(h.validator, h.logger))
		r.Use(authmw.RequireRole(h.logger, RoleAdmin))
		r.Post("/admin/update-agency-status", h.HandleUpdateStatus)
		r.Get("/admin/agencies", h.HandleList)
		r.Get("/admin/agencies/{id}", h.HandleGet)
		r.Post("/admin/send-query", h.HandleSendQuery)
	})
}

type resultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type dataResponse struct {
	Data any `json:"data"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.UserID(ctx)

	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.svc.Decide(ctx, caller, req.command())
	if err != nil {
		h.logger.WarnContext(ctx, "agency status update failed",
			"request_id", requestID,
			"agency_id", req.AgencyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resultResponse{Success: true, Message: res.Message})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.svc.ListAgencies(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list agencies",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dataResponse{Data: list})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	app, err := h.svc.GetAgency(ctx, requestcontext.UserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dataResponse{Data: app})
}

func (h *Handler) HandleSendQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SendQueryRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.svc.SendQuery(ctx, requestcontext.UserID(ctx), req.command()); err != nil {
		h.logger.WarnContext(ctx, "admin query failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resultResponse{Success: true, Message: "Email sent successfully"})
}
