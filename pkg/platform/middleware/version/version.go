// Package version ties a request to the API version of the subrouter that
// served it and rejects tokens issued for a version the route cannot honor.
package version

import (
	"log/slog"
	"net/http"

	id "trustreg/pkg/domain"
	dErrors "trustreg/pkg/domain-errors"
	"trustreg/pkg/platform/httputil"
	"trustreg/pkg/requestcontext"
)

// ExtractVersion records the route version for everything mounted below it.
func ExtractVersion(version id.APIVersion) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithAPIVersion(r.Context(), version)))
		})
	}
}

// ValidateTokenVersion must run after ExtractVersion and auth.RequireAuth.
// A token without a version claim counts as v1. A route accepts tokens of its
// own version or older.
func ValidateTokenVersion(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			route := requestcontext.APIVersion(ctx)
			if route.IsNil() {
				logger.ErrorContext(ctx, "route version not set",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "route version not configured"))
				return
			}

			token := requestcontext.TokenAPIVersion(ctx)
			if token.IsNil() {
				token = id.APIVersionV1
			}
			if !route.IsAtLeast(token) {
				logger.WarnContext(ctx, "token version rejected",
					"token_version", token.String(),
					"route_version", route.String(),
					"caller", string(requestcontext.Caller(ctx)),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token API version not accepted by this endpoint"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
