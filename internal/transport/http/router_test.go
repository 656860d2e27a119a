package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustreg/contracts/registry"
	jwttoken "trustreg/internal/jwt_token"
	"trustreg/internal/platform/metrics"
	ratelimitmw "trustreg/internal/ratelimit/middleware"
	ratelimitmodels "trustreg/internal/ratelimit/models"
	"trustreg/internal/ratelimit/store/bucket"
	"trustreg/internal/registry/handler"
	"trustreg/internal/registry/journal"
	registrymetrics "trustreg/internal/registry/metrics"
	"trustreg/internal/registry/models"
	"trustreg/internal/registry/sequencer"
	"trustreg/internal/registry/service"
	id "trustreg/pkg/domain"
	auditpublisher "trustreg/pkg/platform/audit/publisher"
	auditmemory "trustreg/pkg/platform/audit/store/memory"
	"trustreg/pkg/testutil"
)

const (
	owner         registry.Principal = "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"
	stranger      registry.Principal = "ST2JHG361ZXG51QTKY2NQCVBPPRRE2KZB1HR05NNC"
	manufacturer1                    = "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"
	adminToken                       = "admin-secret"
)

type stack struct {
	router http.Handler
	tokens *jwttoken.JWTService
}

func newStack(t *testing.T, checks map[string]HealthCheck, opts ...func(*Dependencies)) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	seq, err := sequencer.New(context.Background(), owner, journal.NewMemory())
	require.NoError(t, err)
	auditPub := auditpublisher.NewPublisher(auditmemory.NewInMemoryStore())
	svc := service.New(seq,
		service.WithLogger(logger),
		service.WithAuditPublisher(auditPub),
		service.WithMetrics(registrymetrics.New(reg)),
	)
	tokens := jwttoken.NewJWTService("test-signing-key", "trustreg", "trustreg-api")

	deps := Dependencies{
		Registry:     handler.New(svc, auditPub, logger),
		Tokens:       jwttoken.NewJWTServiceAdapter(tokens),
		AdminToken:   adminToken,
		Logger:       logger,
		HTTPMetrics:  metrics.New(reg),
		Gatherer:     reg,
		HealthChecks: checks,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	router := NewRouter(deps)
	return &stack{router: router, tokens: tokens}
}

func (s *stack) token(t *testing.T, p registry.Principal) string {
	t.Helper()
	tok, err := s.tokens.GenerateAccessToken(p, id.APIVersionV1, time.Hour)
	require.NoError(t, err)
	return tok
}

func registerBody() map[string]string {
	return map[string]string{
		"entity_id":      manufacturer1,
		"name":           "MedSupply Inc",
		"license_number": "MS12345",
	}
}

func TestRegistryOverHTTP(t *testing.T) {
	s := newStack(t, nil)

	testutil.Given(t, "no bearer token", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/registry/manufacturers", registerBody())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	testutil.Given(t, "a token for someone other than the authority", func(t *testing.T) {
		req := testutil.WithBearer(
			testutil.NewJSONRequest(t, http.MethodPost, "/v1/registry/manufacturers", registerBody()),
			s.token(t, stranger))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusForbidden)

		status := testutil.UnmarshalResponse[models.Status](t,
			testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/v1/registry/status")))
		assert.Equal(t, registry.Height(0), status.Height)
	})

	testutil.Given(t, "the authority's token", func(t *testing.T) {
		ownerToken := s.token(t, owner)

		testutil.When(t, "it registers a manufacturer", func(t *testing.T) {
			req := testutil.WithBearer(
				testutil.NewJSONRequest(t, http.MethodPost, "/v1/registry/manufacturers", registerBody()),
				ownerToken)
			rr := testutil.DoRequest(s.router, req)
			testutil.AssertStatus(t, rr, http.StatusCreated)

			testutil.Then(t, "anyone can see it verified", func(t *testing.T) {
				rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet,
					"/v1/registry/manufacturers/"+manufacturer1+"/verified"))
				testutil.AssertStatus(t, rr, http.StatusOK)
				assert.True(t, testutil.UnmarshalResponse[models.Verification](t, rr).Verified)
			})

			testutil.Then(t, "registering again conflicts", func(t *testing.T) {
				req := testutil.WithBearer(
					testutil.NewJSONRequest(t, http.MethodPost, "/v1/registry/manufacturers", registerBody()),
					ownerToken)
				testutil.AssertStatus(t, testutil.DoRequest(s.router, req), http.StatusConflict)
			})
		})

		testutil.When(t, "it deactivates the manufacturer", func(t *testing.T) {
			req := testutil.WithBearer(testutil.NewRequest(t, http.MethodPost,
				"/v1/registry/manufacturers/"+manufacturer1+"/deactivate"), ownerToken)
			testutil.AssertStatus(t, testutil.DoRequest(s.router, req), http.StatusOK)

			testutil.Then(t, "the manufacturer is no longer verified", func(t *testing.T) {
				rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet,
					"/v1/registry/manufacturers/"+manufacturer1+"/verified"))
				assert.False(t, testutil.UnmarshalResponse[models.Verification](t, rr).Verified)
			})
		})
	})

	testutil.Given(t, "the admin routes", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/admin/journal/verify"))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)

		req := testutil.NewRequest(t, http.MethodGet, "/admin/journal/verify")
		req.Header.Set("X-Admin-Token", adminToken)
		rr = testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		got := testutil.UnmarshalResponse[handler.JournalCheckResponse](t, rr)
		assert.True(t, got.Valid)
		assert.Equal(t, registry.Height(2), got.Height)

		req = testutil.NewRequest(t, http.MethodGet, "/admin/audit?subject="+manufacturer1)
		req.Header.Set("X-Admin-Token", adminToken)
		rr = testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		trail := testutil.UnmarshalResponse[handler.AuditResponse](t, rr)
		assert.GreaterOrEqual(t, trail.Count, 3)
	})
}

func TestVersionlessRoutesAreNotMounted(t *testing.T) {
	s := newStack(t, nil)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/registry/status"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newStack(t, map[string]HealthCheck{
			"journal": func(context.Context) error { return nil },
		})
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/health"))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("degraded", func(t *testing.T) {
		s := newStack(t, map[string]HealthCheck{
			"journal": func(context.Context) error { return errors.New("connection refused") },
		})
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/health"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		assert.Contains(t, rr.Body.String(), `"journal":"unavailable"`)
	})

	t.Run("metrics exposes registry and http series", func(t *testing.T) {
		s := newStack(t, nil)
		testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/v1/registry/status"))
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		testutil.AssertStatus(t, rr, http.StatusOK)
		body := rr.Body.String()
		assert.Contains(t, body, "trustreg_http_request_duration_seconds")
		assert.Contains(t, body, "trustreg_height")
	})
}

func TestPublicReadsAreRateLimited(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimitmw.New(bucket.NewInMemoryBucketStore(), logger,
		ratelimitmw.WithLimit(ratelimitmodels.ClassRead, ratelimitmodels.Limit{Requests: 2, Window: time.Minute}))
	s := newStack(t, nil, func(d *Dependencies) { d.RateLimit = limiter })

	for range 2 {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/v1/registry/status"))
		testutil.AssertStatus(t, rr, http.StatusOK)
	}
	rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/v1/registry/status"))
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)

	// Health is outside the versioned surface.
	rr = testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/health"))
	testutil.AssertStatus(t, rr, http.StatusOK)
}
