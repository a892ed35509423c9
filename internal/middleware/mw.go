package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/shivanshkc/robloxauth/internal/utils/httputils"
)

// Middleware implements all the REST middleware methods.
type Middleware struct {
	// AllowedOrigins are the origins that may call the API with credentials.
	AllowedOrigins []string
}

// NewMiddleware returns a Middleware that allows the origins of the given client callback URLs.
func NewMiddleware(allowedRedirectURLs []string) *Middleware {
	m := &Middleware{}
	for _, raw := range allowedRedirectURLs {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			slog.Warn("skipping redirect url for cors", "value", raw)
			continue
		}

		origin := parsed.Scheme + "://" + parsed.Host
		if !slices.Contains(m.AllowedOrigins, origin) {
			m.AllowedOrigins = append(m.AllowedOrigins, origin)
		}
	}
	return m
}

// Recovery converts a panic in any handler into a 500 response.
func (m *Middleware) Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			errAny := recover()
			if errAny == nil {
				return
			}

			slog.ErrorContext(r.Context(), "panic occurred during request execution",
				"err", errAny, "stack", string(debug.Stack()))

			err, ok := errAny.(error)
			if !ok {
				err = fmt.Errorf("recover returned a non-error type value: %v", errAny)
			}

			httputils.WriteErr(w, err)
		}()

		next.ServeHTTP(w, r)
	})
}

// CORS middleware attaches the necessary CORS headers for the allowed origins.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	allowedMethods := strings.Join([]string{http.MethodGet, http.MethodHead, http.MethodOptions}, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Credentials are allowed, so the origin must be echoed instead of a wildcard.
		if origin := r.Header.Get("Origin"); origin != "" && slices.Contains(m.AllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		// Cache preflight requests for 1 hour.
		w.Header().Set("Access-Control-Max-Age", "3600")
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, "+
			"Accept-Encoding, Authorization, X-Requested-With, X-Request-Id")

		// Handle preflight requests.
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
