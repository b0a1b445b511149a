package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/JeduDev/lugx/internal/logger"
	"github.com/JeduDev/lugx/internal/security"
)

// Authenticate requires a valid Bearer token on every request.
func Authenticate(tm security.TokenManager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, Envelope{Success: false, Message: "missing bearer token"})
				return
			}
			if _, err := tm.ValidateToken(strings.TrimPrefix(header, "Bearer ")); err != nil {
				writeJSON(w, http.StatusUnauthorized, Envelope{Success: false, Message: "invalid or expired token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs method, path, status and duration for each request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
