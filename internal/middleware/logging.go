package middleware

import (
	"net/http"
	"time"

	"sacco/pkg/logger"
)

// LoggingMiddleware records basic request metrics using the provided logger.
type LoggingMiddleware struct {
	logger logger.Logger
}

func NewLoggingMiddleware(log logger.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: log}
}

// Log wraps handlers with structured request/response logging. Actor fields
// are only present when Authenticate ran inside this middleware.
func (m *LoggingMiddleware) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          r.RemoteAddr,
			"user_agent":  r.UserAgent(),
			"request_id":  RequestIDFromContext(r.Context()),
		}
		if wrapped.actor != "" {
			fields["actor_id"] = wrapped.actor
		}
		if wrapped.statusCode >= http.StatusInternalServerError {
			m.logger.Error("HTTP Request", fields)
			return
		}
		m.logger.Info("HTTP Request", fields)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	actor      string
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// TrackActor copies the authenticated actor onto the logging writer so the
// outer Log middleware can report it.
func TrackActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rw, ok := w.(*responseWriter); ok {
			if id, ok := ActorIDFromContext(r.Context()); ok {
				rw.actor = id.String()
			}
		}
		next.ServeHTTP(w, r)
	})
}
