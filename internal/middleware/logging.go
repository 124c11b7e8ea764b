package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hongminglow/carepoint/internal/gateway"
)

// RequestIDHeader carries the request id to and from the portal.
const RequestIDHeader = gateway.RequestIDHeader

// RequestID returns the id assigned to the request by Logging.
func RequestID(ctx context.Context) string {
	return gateway.RequestIDFromContext(ctx)
}

const maxRequestIDLen = 64

// validRequestID accepts short ids made of letters, digits, '-', '_' and '.'.
// Anything else is replaced before it reaches logs or the backend.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging assigns a request id and writes one log line per request. Backend
// calls made while serving the request reuse the id.
func Logging(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := r.Header.Get(RequestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, rid)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(gateway.ContextWithRequestID(r.Context(), rid)))

		evt := logger.Info()
		if rec.status >= 500 {
			evt = logger.Error()
		}
		evt.
			Str("request_id", rid).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("latency", time.Since(start)).
			Msg("request")
	})
}
