package middleware

import (
	"net/http"
)

const (
	xContentTypeOptions = "X-Content-Type-Options"
	cacheControl        = "Cache-Control"
	referrerPolicy      = "Referrer-Policy"
)

// Security adds essential security headers.
//
// NOTE: Headers like "Strict-Transport-Security" are left to the reverse proxy.
func (m *Middleware) Security(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Browsers should not try to guess the Content-Type if it is not provided.
		w.Header().Set(xContentTypeOptions, "nosniff")

		// Responses carry sessions and authorization codes, none of which may be cached.
		w.Header().Set(cacheControl, "no-store, max-age=0")

		// The callback URL contains the authorization code and the state.
		// They must not leak to the next page through the Referer header.
		w.Header().Set(referrerPolicy, "no-referrer")

		next.ServeHTTP(w, r)
	})
}
