// Package healthcheck composes dependency probes into liveness and
// readiness HTTP handlers.
package healthcheck

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/devicekit/core/logger"
)

// Probe verifies one dependency. Storage integrations expose their probes
// as Healthcheck(conn) constructors.
type Probe func(context.Context) error

// Liveness reports the process is running. It never checks dependencies.
func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ALIVE"))
	}
}

// Readiness runs each probe in sequence and returns "READY" when all pass,
// or 503 when any fails. Failures are logged with the probe error.
func Readiness(log *slog.Logger, probes ...Probe) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		for _, probe := range probes {
			if err := probe(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed", logger.Error(err))
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}
