package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"resqnet/internal/platform/config"
	"resqnet/internal/platform/mail"
	httptransport "resqnet/internal/transport/http"
	"resqnet/pkg/testutil"
)

var otpPattern = regexp.MustCompile(`verification code is: (\d{6})`)

type demoServer struct {
	t      *testing.T
	router http.Handler
	mailer *mail.Recorder
}

func newDemoServer(t *testing.T) *demoServer {
	t.Helper()
	cfg := config.Server{
		Addr:            ":0",
		DemoMode:        true,
		JWTSigningKey:   "test-signing-key",
		JWTIssuer:       "resqnet-test",
		TokenTTL:        time.Hour,
		OTPTTL:          10 * time.Minute,
		MaxDocumentSize: 1 << 20,
		Blob:            config.BlobConfig{Bucket: "docs"},
		RateLimit:       config.RateLimitConfig{RequestsPerIP: 100, RequestsPerKey: 20, Window: time.Minute},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	in, err := buildInfra(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(in.Close)

	reg := prometheus.NewRegistry()
	router := httptransport.NewRouter(httptransport.Config{Logger: log, Registry: reg, Checks: in.healthChecks()},
		buildModules(cfg, in, reg, log)...)

	recorder, ok := in.mailer.(*mail.Recorder)
	require.True(t, ok, "demo mode sends mail to the recorder")
	return &demoServer{t: t, router: router, mailer: recorder}
}

func (s *demoServer) postJSON(path, token string, body any) int {
	req := testutil.NewJSONRequest(s.t, http.MethodPost, path, body)
	return testutil.DoRequest(s.router, testutil.WithBearer(req, token)).Code
}

// activate runs signup, OTP activation and login, returning an access token.
func (s *demoServer) activate(email, role string) string {
	t := s.t
	require.Equal(t, http.StatusCreated, s.postJSON("/auth/signup", "", map[string]string{
		"email": email, "password": "correct horse battery", "role": role,
	}))
	require.Equal(t, http.StatusOK, s.postJSON("/auth/create-profile", "", map[string]string{
		"email": email, "role": role,
	}))

	msg, ok := s.mailer.Last(email)
	require.True(t, ok)
	match := otpPattern.FindStringSubmatch(msg.TextBody)
	require.Len(t, match, 2)
	require.Equal(t, http.StatusOK, s.postJSON("/auth/verify-otp", "", map[string]string{
		"email": email, "otp": match[1],
	}))

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email": email, "password": "correct horse battery",
	}))
	require.Equal(t, http.StatusOK, rr.Code)
	login := testutil.UnmarshalResponse[struct {
		AccessToken string `json:"access_token"`
	}](t, rr)
	require.NotEmpty(t, login.AccessToken)
	return login.AccessToken
}

func TestDemoOnboardingFlow(t *testing.T) {
	testutil.Given(t, "a server running on in-memory adapters", func(t *testing.T) {
		s := newDemoServer(t)
		agencyToken := s.activate("ops@relief.org", "agency")
		adminToken := s.activate("root@resqnet.org", "admin")
		var agencyID string

		testutil.When(t, "the agency saves a draft", func(t *testing.T) {
			form := url.Values{"isDraft": {"true"}, "agency_name": {"Relief Org"}}
			req := testutil.NewRequestWithBody(t, http.MethodPost, "/agency/registration", form.Encode())
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rr := testutil.DoRequest(s.router, testutil.WithBearer(req, agencyToken))
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			testutil.Then(t, "the admin sees it in the list", func(t *testing.T) {
				req := testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/admin/agencies"), adminToken)
				rr := testutil.DoRequest(s.router, req)
				require.Equal(t, http.StatusOK, rr.Code)
				list := testutil.UnmarshalResponse[struct {
					Data []struct {
						ID         string `json:"id"`
						AgencyName string `json:"agency_name"`
						Status     string `json:"status"`
					} `json:"data"`
				}](t, rr)
				require.Len(t, list.Data, 1)
				require.Equal(t, "draft", list.Data[0].Status)
				agencyID = list.Data[0].ID
			})
		})

		testutil.When(t, "the admin rejects it", func(t *testing.T) {
			require.NotEmpty(t, agencyID)
			require.Equal(t, http.StatusOK, s.postJSON("/admin/update-agency-status", adminToken, map[string]string{
				"agencyId": agencyID, "status": "rejected", "rejectionReason": "missing certificate",
			}))

			testutil.Then(t, "the agency sees the rejection", func(t *testing.T) {
				req := testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/agency/registration"), agencyToken)
				rr := testutil.DoRequest(s.router, req)
				require.Equal(t, http.StatusOK, rr.Code)
				testutil.AssertJSONContains(t, rr, "status", "rejected")
			})
			testutil.And(t, "is told by email", func(t *testing.T) {
				msg, ok := s.mailer.Last("ops@relief.org")
				require.True(t, ok)
				require.True(t, strings.HasPrefix(msg.Subject, "Agency Registration Update"))
			})
		})

		testutil.When(t, "the agency calls an admin route", func(t *testing.T) {
			req := testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/admin/agencies"), agencyToken)
			testutil.Then(t, "it is forbidden", func(t *testing.T) {
				testutil.AssertStatus(t, testutil.DoRequest(s.router, req), http.StatusForbidden)
			})
		})
	})
}

func TestDemoHealthHasNoChecks(t *testing.T) {
	s := newDemoServer(t)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/health"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")
}
