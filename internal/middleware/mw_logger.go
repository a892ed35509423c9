package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// xRequestID is the header that carries the ID of the request.
const xRequestID = "X-Request-Id"

// AccessLogger logs every request along with its response status and latency.
// A request ID is assigned unless the caller (or a reverse proxy) supplied one.
func (m *Middleware) AccessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(xRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set(xRequestID, requestID)
		}
		w.Header().Set(xRequestID, requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		slog.InfoContext(r.Context(), "request handled",
			"request-id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"latency", time.Since(start))
	})
}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Unwrap allows http.ResponseController to reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
