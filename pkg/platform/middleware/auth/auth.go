// Package auth authenticates callers from Bearer tokens.
//
// The verified token subject becomes the caller principal the registry
// compares against its authority. Nothing downstream trusts any other
// request field for identity.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "trustreg/pkg/domain"
	dErrors "trustreg/pkg/domain-errors"
	"trustreg/pkg/platform/httputil"
	request "trustreg/pkg/platform/middleware/request"
	"trustreg/pkg/requestcontext"
)

// TokenValidator validates a raw bearer token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims are the verified facts the middleware needs from a token.
type Claims struct {
	Subject    string
	APIVersion string
	JTI        string
}

func unauthorized(w http.ResponseWriter, description string) {
	httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, description))
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller principal and token API version in the context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				unauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				unauthorized(w, "Invalid or expired token")
				return
			}

			caller, err := id.ParsePrincipal(claims.Subject)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid subject",
					"error", err,
					"request_id", requestID,
				)
				unauthorized(w, "Invalid token subject")
				return
			}

			ctx = requestcontext.WithCaller(ctx, caller)
			if claims.APIVersion != "" {
				ctx = requestcontext.WithTokenAPIVersion(ctx, id.APIVersion(claims.APIVersion))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
