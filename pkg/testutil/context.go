package testutil

import (
	"context"
	"net/http"
	"strings"
	"time"

	"provenance/pkg/domain"
	"provenance/pkg/requestcontext"
)

// WithCaller adds a caller identity to the request context.
// This simulates what the caller identity middleware does for identified
// requests. Blank identities are not added.
func WithCaller(req *http.Request, caller string) *http.Request {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return req
	}
	ctx := requestcontext.WithCaller(req.Context(), domain.Identity(caller))
	return req.WithContext(ctx)
}

// WithTime pins the request clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
