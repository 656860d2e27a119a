// Package admin guards operator routes with a static shared token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "trustreg/pkg/domain-errors"
	"trustreg/pkg/platform/httputil"
	"trustreg/pkg/requestcontext"
)

// HeaderAdminToken carries the operator token.
const HeaderAdminToken = "X-Admin-Token"

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// expected. An empty expected token rejects everything. Registry mutations
// never go through here; they need the authority's bearer token.
func RequireAdminToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sent := r.Header.Get(HeaderAdminToken)
			if expected == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(expected)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token rejected",
					"path", r.URL.Path,
					"client_ip", requestcontext.ClientIP(ctx),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
