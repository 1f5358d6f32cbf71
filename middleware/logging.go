package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/devicekit/core/logger"
	"github.com/dmitrymomot/devicekit/pkg/clientip"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging emits one structured log line per request.
func Logging(log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.InfoContext(r.Context(), "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				logger.ClientIP(clientip.GetIP(r)),
				logger.Elapsed(start),
				slog.String("request_id", GetRequestID(r.Context())),
			)
		})
	}
}
