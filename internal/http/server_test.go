package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shivanshkc/robloxauth/internal/config"
	"github.com/shivanshkc/robloxauth/internal/handler"
	"github.com/shivanshkc/robloxauth/internal/middleware"
	"github.com/shivanshkc/robloxauth/pkg/oauth"
)

func newTestServer(t *testing.T, pprofEnabled bool) *Server {
	t.Helper()

	conf := config.LoadMock()
	conf.Application.PProf = pprofEnabled

	// Verification is disabled so that no key set is fetched.
	roblox, err := oauth.NewRoblox(context.Background(), oauth.Options{
		ClientID:                   conf.Roblox.ClientID,
		ClientSecret:               conf.Roblox.ClientSecret,
		DisableIDTokenVerification: true,
	})
	require.NoError(t, err, "Failed to create provider")

	return &Server{
		Config:     conf,
		Middleware: middleware.NewMiddleware(conf.AllowedRedirectURLs),
		Handler:    handler.NewHandler(conf, nil, roblox),
	}
}

func TestServer_Routes(t *testing.T) {
	router := newTestServer(t, false).getHandler()
	allowed := url.QueryEscape(config.LoadMock().AllowedRedirectURLs[0])

	for _, tc := range []struct {
		name           string
		method         string
		target         string
		expectedStatus int
	}{
		{name: "Health", method: http.MethodGet, target: "/api/health", expectedStatus: http.StatusOK},
		{
			name:           "Auth redirect",
			method:         http.MethodGet,
			target:         "/api/auth/roblox?redirect_url=" + allowed,
			expectedStatus: http.StatusFound,
		},
		{
			name:           "Auth with unknown provider",
			method:         http.MethodGet,
			target:         "/api/auth/google?redirect_url=" + allowed,
			expectedStatus: http.StatusBadRequest,
		},
		{name: "Check without session", method: http.MethodGet, target: "/api/check", expectedStatus: http.StatusUnauthorized},
		{name: "Unknown route", method: http.MethodGet, target: "/api/random", expectedStatus: http.StatusNotFound},
		{name: "Profiling disabled", method: http.MethodGet, target: "/debug/pprof", expectedStatus: http.StatusNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tc.method, tc.target, nil))

			require.Equal(t, tc.expectedStatus, w.Code)
			require.NotEmpty(t, w.Header().Get("X-Request-Id"), "Expected access logger to run")
		})
	}
}

func TestServer_AuthRedirect(t *testing.T) {
	router := newTestServer(t, false).getHandler()
	allowed := url.QueryEscape(config.LoadMock().AllowedRedirectURLs[0])

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/roblox?redirect_url="+allowed, nil))
	require.Equal(t, http.StatusFound, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err, "Expected Location header to be a valid URL")
	require.Equal(t, "authorize.roblox.com", location.Host)

	query := location.Query()
	require.Equal(t, "mock-client-id", query.Get("client_id"))
	require.Equal(t, "http://localhost:8080/api/auth/roblox/callback", query.Get("redirect_uri"))
	require.Equal(t, "S256", query.Get("code_challenge_method"))
	require.NotEmpty(t, query.Get("state"))
	require.NotEmpty(t, query.Get("nonce"))

	// Security headers are attached to every response.
	require.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
	require.Equal(t, "no-store, max-age=0", w.Header().Get("Cache-Control"))
}

func TestServer_Preflight(t *testing.T) {
	router := newTestServer(t, false).getHandler()

	for _, target := range []string{"/api/check", "/api/health", "/api/auth/roblox", "/api/auth/roblox/callback"} {
		t.Run(target, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodOptions, target, nil)
			r.Header.Set("Origin", "http://localhost:3000")
			r.Header.Set("Access-Control-Request-Method", http.MethodGet)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			require.Equal(t, http.StatusNoContent, w.Code)
			require.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
			require.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			require.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
		})
	}
}

func TestServer_Profiling(t *testing.T) {
	router := newTestServer(t, true).getHandler()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
