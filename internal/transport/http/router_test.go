package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resqnet/pkg/platform/httputil"
	"resqnet/pkg/platform/middleware/request"
	"resqnet/pkg/requestcontext"
	"resqnet/pkg/testutil"
)

type pingModule struct{}

func (pingModule) Register(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"request_id": requestcontext.RequestID(ctx),
			"client_ip":  requestcontext.ClientIP(ctx),
		})
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
}

func newTestRouter(checks map[string]HealthCheck) http.Handler {
	return NewRouter(Config{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry: prometheus.NewRegistry(),
		Checks:   checks,
	}, pingModule{})
}

func TestModulesGetRequestContext(t *testing.T) {
	h := newTestRouter(nil)
	req := testutil.NewRequest(t, http.MethodGet, "/ping")
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	rr := testutil.DoRequest(h, req)
	testutil.AssertStatusOK(t, rr)
	body := testutil.UnmarshalResponse[map[string]string](t, rr)
	assert.Equal(t, "203.0.113.5", (*body)["client_ip"])
	assert.NotEmpty(t, (*body)["request_id"])
	assert.Equal(t, (*body)["request_id"], rr.Header().Get(request.HeaderRequestID))
}

func TestHealth(t *testing.T) {
	rr := testutil.DoRequest(newTestRouter(nil), testutil.NewRequest(t, http.MethodGet, "/health"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")

	h := newTestRouter(map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	rr = testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/health"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	body := testutil.UnmarshalResponse[healthResponse](t, rr)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "unavailable", body.Checks["redis"])
	assert.Equal(t, "ok", body.Checks["postgres"])
}

func TestMetricsExposeRoutePatterns(t *testing.T) {
	h := newTestRouter(nil)
	testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/ping"))

	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	out := string(testutil.ReadBody(t, rr))
	require.True(t, strings.Contains(out, "resqnet_http_requests_total"))
	assert.Contains(t, out, `route="/ping"`)
}

func TestPanicsAndUnknownRoutes(t *testing.T) {
	h := newTestRouter(nil)

	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/boom"))
	testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")

	rr = testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/nowhere"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}
