package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/httputil"
	"provenance/pkg/requestcontext"
)

// JWTValidator resolves a bearer token to a caller identity.
type JWTValidator interface {
	ValidateToken(tokenString string) (domain.Identity, error)
}

// GetCaller retrieves the authenticated caller from the context.
func GetCaller(r *http.Request) domain.Identity {
	return requestcontext.Caller(r.Context())
}

// CallerIdentity places the caller identity into the request context.
//
// With a validator the identity is the subject of the bearer token and the
// identity header is ignored. Without one the identity header is trusted,
// which assumes an authenticating proxy in front of the service. Requests
// without credentials pass through anonymously; handlers for mutating routes
// reject them. A presented but invalid token is rejected here.
func CallerIdentity(header string, validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if validator != nil {
				authHeader := r.Header.Get("Authorization")
				token, ok := strings.CutPrefix(authHeader, "Bearer ")
				if !ok {
					next.ServeHTTP(w, r)
					return
				}
				caller, err := validator.ValidateToken(token)
				if err != nil {
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", GetRequestID(ctx),
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
					return
				}
				next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, caller)))
				return
			}

			caller := domain.Identity(strings.TrimSpace(r.Header.Get(header)))
			if caller.IsNil() {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, caller)))
		})
	}
}
