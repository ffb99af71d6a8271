package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resqnet/internal/auth/service"
	"resqnet/internal/auth/store/account"
	"resqnet/internal/auth/store/profile"
	"resqnet/internal/auth/store/roster"
	jwttoken "resqnet/internal/jwt_token"
	"resqnet/internal/platform/mail"
	"resqnet/pkg/testutil"
)

type fixture struct {
	router  http.Handler
	limited int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens := jwttoken.NewJWTService("test-key", "resqnet-test")
	svc := service.New(account.NewInMemory(), profile.NewInMemory(), roster.NewInMemory(), mail.NewRecorder(), tokens,
		service.WithOTPGenerator(func() (string, error) { return "123456", nil }),
	)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{}
	counting := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.limited++
			next.ServeHTTP(w, r)
		})
	}
	r := chi.NewRouter()
	New(svc, logger, jwttoken.NewJWTServiceAdapter(tokens), WithOTPLimiter(counting)).Register(r)
	f.router = r
	return f
}

func (f *fixture) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, path, body))
}

func TestActivationFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/auth/signup", map[string]string{"email": "ops@relief.org", "password": "s3cret-pass", "role": "agency"})
	testutil.AssertStatus(t, rec, http.StatusCreated)

	rec = f.post(t, "/auth/login", map[string]string{"email": "ops@relief.org", "password": "s3cret-pass"})
	testutil.AssertStatusAndError(t, rec, http.StatusNotFound, "not_found")

	rec = f.post(t, "/auth/create-profile", map[string]string{"email": "ops@relief.org", "role": "agency"})
	testutil.AssertStatusOK(t, rec)
	testutil.AssertJSONContains(t, rec, "status", "NEW_PROFILE")

	rec = f.post(t, "/auth/login", map[string]string{"email": "ops@relief.org", "password": "s3cret-pass"})
	testutil.AssertStatusAndError(t, rec, http.StatusUnauthorized, "unauthorized")

	rec = f.post(t, "/auth/verify-otp", map[string]string{"email": "ops@relief.org", "otp": "000000"})
	testutil.AssertStatus(t, rec, http.StatusUnauthorized)
	assert.Equal(t, "RETRY", testutil.UnmarshalErrorResponse(t, rec).Action)

	rec = f.post(t, "/auth/verify-otp", map[string]string{"email": "ops@relief.org", "otp": "123456"})
	testutil.AssertStatusOK(t, rec)
	testutil.AssertJSONContains(t, rec, "action", "LOGIN")

	rec = f.post(t, "/auth/verify-otp", map[string]string{"email": "ops@relief.org", "otp": "123456"})
	testutil.AssertStatus(t, rec, http.StatusConflict)
	errResp := testutil.UnmarshalErrorResponse(t, rec)
	assert.Equal(t, "LOGIN", errResp.Action)
	assert.Equal(t, "ALREADY_VERIFIED", errResp.Status)

	rec = f.post(t, "/auth/login", map[string]string{"email": "ops@relief.org", "password": "s3cret-pass"})
	testutil.AssertStatusOK(t, rec)
	login := testutil.UnmarshalResponse[loginResponse](t, rec)
	require.NotEmpty(t, login.AccessToken)
	assert.Equal(t, "Bearer", login.TokenType)

	req := testutil.NewRequest(t, http.MethodGet, "/auth/me")
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec = testutil.DoRequest(f.router, req)
	testutil.AssertStatusOK(t, rec)
	me := testutil.UnmarshalResponse[meResponse](t, rec)
	require.NotNil(t, me.Profile)
	assert.True(t, me.Profile.Verified)

	assert.Equal(t, 4, f.limited)
}

func TestCreateProfileErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/auth/create-profile", map[string]string{"email": "ghost@relief.org", "role": "agency"})
	testutil.AssertStatusAndError(t, rec, http.StatusNotFound, "not_found")

	rec = f.post(t, "/auth/create-profile", map[string]string{"email": "ghost@relief.org"})
	testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "bad_request")

	rec = testutil.DoRequest(f.router, testutil.NewRequestWithBody(t, http.MethodPost, "/auth/create-profile", "{not json"))
	testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "bad_request")
}

func TestMeRequiresToken(t *testing.T) {
	f := newFixture(t)
	rec := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/auth/me"))
	testutil.AssertStatusAndError(t, rec, http.StatusUnauthorized, "unauthorized")
}
