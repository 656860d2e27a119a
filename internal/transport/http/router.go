// Package httptransport assembles the public HTTP surface: middleware
// stack, versioned registry routes, admin routes, health and metrics.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"trustreg/internal/platform/metrics"
	ratelimitmw "trustreg/internal/ratelimit/middleware"
	"trustreg/internal/ratelimit/models"
	"trustreg/internal/registry/handler"
	id "trustreg/pkg/domain"
	"trustreg/pkg/platform/httputil"
	"trustreg/pkg/platform/middleware/admin"
	"trustreg/pkg/platform/middleware/auth"
	"trustreg/pkg/platform/middleware/metadata"
	request "trustreg/pkg/platform/middleware/request"
	"trustreg/pkg/platform/middleware/requesttime"
	"trustreg/pkg/platform/middleware/version"
)

const defaultRequestTimeout = 30 * time.Second

// HealthCheck reports whether one backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies are the collaborators NewRouter mounts.
type Dependencies struct {
	Registry       *handler.Handler
	Tokens         auth.TokenValidator
	AdminToken     string
	Logger         *slog.Logger
	HTTPMetrics    *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
	RateLimit      *ratelimitmw.Middleware
}

// NewRouter wires every route. Reads under /v1 are public; mutations require
// a bearer token whose API version the route accepts. /admin is mounted only
// when an admin token is configured.
func NewRouter(deps Dependencies) http.Handler {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(deps.Logger))
	r.Use(request.Logger(deps.Logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Middleware)
	}
	r.Use(request.Timeout(timeout))

	r.Get("/health", healthHandler(deps.HealthChecks))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(version.ExtractVersion(id.APIVersionV1))
		r.Group(func(r chi.Router) {
			if deps.RateLimit != nil {
				r.Use(deps.RateLimit.RateLimit(models.ClassRead))
			}
			deps.Registry.Register(r)
		})
		r.Group(func(r chi.Router) {
			if deps.RateLimit != nil {
				r.Use(deps.RateLimit.RateLimit(models.ClassWrite))
			}
			r.Use(auth.RequireAuth(deps.Tokens, deps.Logger))
			r.Use(version.ValidateTokenVersion(deps.Logger))
			deps.Registry.RegisterMutations(r)
		})
	})

	if deps.AdminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(admin.RequireAdminToken(deps.AdminToken, deps.Logger))
			deps.Registry.RegisterAdmin(r)
		})
	}

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
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
