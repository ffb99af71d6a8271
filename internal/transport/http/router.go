// Package httptransport assembles the chi router: shared middleware, health and
// metrics endpoints, and every module's routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"resqnet/internal/platform/metrics"
	dErrors "resqnet/pkg/domain-errors"
	"resqnet/pkg/platform/httputil"
	"resqnet/pkg/platform/middleware/metadata"
	"resqnet/pkg/platform/middleware/request"
	"resqnet/pkg/platform/middleware/requesttime"
)

const healthTimeout = 2 * time.Second

// Module is implemented by each feature handler.
type Module interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Logger   *slog.Logger
	Registry *prometheus.Registry
	// Checks are run by /health, keyed by dependency name.
	Checks map[string]HealthCheck
}

func NewRouter(cfg Config, modules ...Module) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Recover(cfg.Logger))
	r.Use(request.Logger(cfg.Logger))
	if cfg.Registry != nil {
		r.Use(metrics.NewHTTP(cfg.Registry).Middleware)
		// The default gatherer carries the Go runtime and process collectors.
		gatherers := prometheus.Gatherers{cfg.Registry, prometheus.DefaultGatherer}
		r.Handle("/metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))
	}

	r.Get("/health", healthHandler(cfg.Checks))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})

	for _, m := range modules {
		m.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
