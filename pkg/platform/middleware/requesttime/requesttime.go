// Package requesttime pins one "now" per HTTP request. Audit events raised by
// the request read it through requestcontext.Now.
package requesttime

import (
	"net/http"
	"time"

	"trustreg/pkg/requestcontext"
)

// Middleware stores the arrival time in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
