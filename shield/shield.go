// Package shield provides the HTTP middleware every taxonav listener runs:
// security headers, request body limits, request tracing and HEAD handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.HeadToGet)
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
//	r.Use(shield.MaxBody(1 << 20))
//	r.Use(shield.TraceID)
//
// Or apply the default API stack in one call:
//
//	for _, mw := range shield.DefaultAPIStack() {
//	    r.Use(mw)
//	}
package shield

import (
	"net/http"
)

type contextKey struct{}

// loggerKey holds the per-request logger set by TraceID.
var loggerKey contextKey

// DefaultMaxBody bounds request bodies on the API. No endpoint takes uploads.
const DefaultMaxBody = 1 << 20

// DefaultAPIStack returns the standard middleware stack for the JSON API.
// Middleware is ordered: HeadToGet → SecurityHeaders → MaxBody → TraceID.
func DefaultAPIStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(DefaultMaxBody),
		TraceID,
	}
}

// HeadToGet serves HEAD through the GET routes. net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
