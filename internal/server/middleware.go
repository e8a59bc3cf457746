package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/inboxreader/internal/instrumentation"
	"github.com/teemow/inboxreader/internal/logging"
)

const (
	headerRequestID = "X-Request-ID"
	unmatchedRoute  = "unmatched"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument wraps a mux with request IDs, access logging, request metrics
// and an OpenTelemetry server span. Metrics are labelled with the matched
// route pattern so query strings cannot blow up cardinality.
func instrument(mux *http.ServeMux, metrics *instrumentation.Metrics, logger *slog.Logger) http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(headerRequestID, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = unmatchedRoute
		}
		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(r.Context(), r.Method, route, rec.status, elapsed)
		logger.Debug("http request",
			slog.String("request_id", requestID),
			slog.String("trace_id", instrumentation.GetTraceID(r.Context())),
			slog.String("route", route),
			slog.Int(logging.KeyStatus, rec.status),
			slog.Duration(logging.KeyDuration, elapsed))
	})
	return otelhttp.NewHandler(h, "inboxreader.web")
}
