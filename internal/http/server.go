package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"github.com/shivanshkc/robloxauth/internal/config"
	"github.com/shivanshkc/robloxauth/internal/handler"
	"github.com/shivanshkc/robloxauth/internal/middleware"
	"github.com/shivanshkc/robloxauth/pkg/signals"
)

// shutdownTimeout bounds the time in-flight requests get to complete upon shutdown.
const shutdownTimeout = 10 * time.Second

// Server is the HTTP server of this application.
type Server struct {
	Config     config.Config
	Middleware *middleware.Middleware
	Handler    *handler.Handler
	httpServer *http.Server
}

// Start sets up all the routes on the server, and calls ListenAndServe on it.
// It returns once the server has been gracefully shut down.
func (s *Server) Start() {
	// Create the HTTP server.
	s.httpServer = &http.Server{
		Addr:              s.Config.HTTPServer.Addr,
		ReadHeaderTimeout: time.Minute,
		Handler:           s.getHandler(),
	}

	// Gracefully shut down upon interruption.
	signals.OnSignal(func(_ os.Signal) {
		slog.Info("interruption detected, gracefully shutting down the server")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Error("failed to gracefully shutdown the server", "err", err)
		}
	})

	slog.Info("starting http server", "name", s.Config.Application.Name, "addr", s.Config.HTTPServer.Addr)
	// Start the HTTP server.
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error in ListenAndServe call", "err", err)
		panic(err)
	}
}

// getHandler attaches middleware and REST methods to a new router.
func (s *Server) getHandler() http.Handler {
	router := mux.NewRouter()

	// Attach middleware. OPTIONS is routed so that preflights reach CORS, which answers them.
	router.Use(s.Middleware.Recovery)
	router.Use(s.Middleware.AccessLogger)
	router.Use(s.Middleware.CORS)
	router.Use(s.Middleware.Security)

	// Redirects the caller to the provider's auth page.
	router.HandleFunc("/api/auth/{provider}", s.Handler.Auth).Methods(http.MethodGet, http.MethodOptions)
	// The provider redirects the caller back here.
	router.HandleFunc("/api/auth/{provider}/callback", s.Handler.Callback).
		Methods(http.MethodGet, http.MethodOptions)

	// Verifies the session. Meant for reverse proxies performing auth requests.
	router.HandleFunc("/api/check", s.Handler.Check).Methods(http.MethodGet, http.MethodHead, http.MethodOptions)
	router.HandleFunc("/api/health", s.Handler.Health).Methods(http.MethodGet, http.MethodOptions)

	// Enable profiling if configured.
	if s.Config.Application.PProf {
		s.addProfilingRoutes(router)
	}

	// Handle 404.
	router.NotFoundHandler = s.Middleware.Recovery(s.Middleware.AccessLogger(http.HandlerFunc(s.Handler.NotFound)))
	return router
}

// addProfilingRoutes adds all the pprof routes to the router.
func (s *Server) addProfilingRoutes(router *mux.Router) {
	// Enable block profiling.
	runtime.SetBlockProfileRate(1)
	// Enable mutex profiling.
	runtime.SetMutexProfileFraction(1)

	// Manually add support for paths linked to by index page at /debug/pprof
	router.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	router.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	router.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	router.Handle("/debug/pprof/block", pprof.Handler("block"))

	router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	router.HandleFunc("/debug/pprof/trace", pprof.Trace)
	router.HandleFunc("/debug/pprof", pprof.Index)

	slog.Info("pprof endpoints available at: /debug/pprof")
}
