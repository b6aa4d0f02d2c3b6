package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/vaultsync/vaultsync/internal/logger"
)

const traceIDHeader = "X-Trace-ID"

// withTraceID stamps every request with a trace ID and attaches a
// request-scoped logger carrying it. Incoming trace IDs are honoured so a
// client can correlate its own retries.
func (h *Handler) withTraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		traceID := r.Header.Get(traceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		l := logger.Logger{Logger: h.logger.With().Str("trace_id", traceID).Logger()}
		r = r.WithContext(l.WithContext(ctx))

		w.Header().Set(traceIDHeader, traceID)
		next.ServeHTTP(w, r)
	})
}
