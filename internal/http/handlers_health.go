package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	healthResponse = `{"status":"ok"}`
	readyTimeout   = 2 * time.Second
)

// ReadinessCheck reports whether the dependencies needed to serve traffic answer.
type ReadinessCheck func(ctx context.Context) error

// healthHandler is the liveness probe; it never touches a dependency.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		return
	}
}

// readyHandler answers 503 while check fails. Target databases are not probed: they are
// dialed lazily per bulk action and one unreachable target must not drain the instance.
func readyHandler(check ReadinessCheck, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if check == nil {
			healthHandler(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := check(ctx); err != nil {
			logger.WarnContext(r.Context(), "readiness check failed", "error", err)
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
		healthHandler(w, r)
	}
}
