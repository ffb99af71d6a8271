// Package handler exposes signup, activation and login over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"resqnet/internal/auth/models"
	"resqnet/internal/auth/service"
	id "resqnet/pkg/domain"
	"resqnet/pkg/platform/httputil"
	authmw "resqnet/pkg/platform/middleware/auth"
	"resqnet/pkg/requestcontext"
)

type Service interface {
	Signup(ctx context.Context, email, password, role string) (*models.Account, error)
	RequestCode(ctx context.Context, email, role string) (*service.RequestCodeResult, error)
	VerifyCode(ctx context.Context, email, otp string) (*service.VerifyResult, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Me(ctx context.Context, userID id.UserID) (*models.Profile, error)
}

type Handler struct {
	svc        Service
	logger     *slog.Logger
	validator  authmw.JWTValidator
	otpLimiter func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithOTPLimiter guards the code request and verification routes.
func WithOTPLimiter(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.otpLimiter = mw }
}

func New(svc Service, logger *slog.Logger, validator authmw.JWTValidator, opts ...Option) *Handler {
	h := &Handler{svc: svc, logger: logger, validator: validator}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/signup", h.HandleSignup)
	r.Post("/auth/login", h.HandleLogin)

	r.Group(func(r chi.Router) {
		if h.otpLimiter != nil {
			r.Use(h.otpLimiter)
		}
		r.Post("/auth/create-profile", h.HandleCreateProfile)
		r.Post("/auth/verify-otp", h.HandleVerifyOTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(h.validator, h.logger))
		r.Get("/auth/me", h.HandleMe)
	})
}

type signupResponse struct {
	ID    id.UserID   `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

type messageResponse struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
	Action  string `json:"action,omitempty"`
}

type loginResponse struct {
	Message     string          `json:"message"`
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int             `json:"expires_in"`
	Profile     *models.Profile `json:"profile"`
}

type meResponse struct {
	Profile *models.Profile `json:"profile"`
}

func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SignupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	acct, err := h.svc.Signup(ctx, req.Email, req.Password, req.Role)
	if err != nil {
		h.logger.WarnContext(ctx, "signup failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, signupResponse{ID: acct.ID, Email: acct.Email, Role: acct.Role})
}

// HandleCreateProfile creates the profile or re-sends its code.
func (h *Handler) HandleCreateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.svc.RequestCode(ctx, req.Email, req.Role)
	if err != nil {
		h.logger.WarnContext(ctx, "code request failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: res.Message, Status: res.Status})
}

func (h *Handler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyOTPRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.svc.VerifyCode(ctx, req.Email, req.OTP)
	if err != nil {
		h.logger.WarnContext(ctx, "otp verification failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: res.Message, Action: res.Action})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Message:     "Login successful",
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(res.ExpiresIn.Seconds()),
		Profile:     res.Profile,
	})
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := h.svc.Me(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "profile lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, meResponse{Profile: profile})
}
