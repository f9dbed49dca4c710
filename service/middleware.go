package service

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/negroni"

	"github.com/DockYard/plausible-proxy/logging"
)

type contextKey string

const (
	RequestIDHeaderKey                   = "X-Request-ID"
	RequestIDContextKey       contextKey = "X-PLAUSIBLE-PROXY-REQUEST-ID"
	maxIncomingRequestIDBytes            = 128
)

// RequestID returns the id assigned to the request by the request logging
// middleware, or an empty string if none was assigned
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return requestID
	}
	return ""
}

// createRequestLoggingMiddleware returns middleware that assigns every request
// an id (reusing a well formed incoming X-Request-ID), makes it available in the
// request context and the response headers, and logs the request once it has
// been served by the rest of the pipeline
func createRequestLoggingMiddleware(serviceLogger *logging.ServiceLogger) negroni.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		requestID := r.Header.Get(RequestIDHeaderKey)
		if requestID == "" || len(requestID) > maxIncomingRequestIDBytes {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeaderKey, requestID)

		requestAt := time.Now()

		lrw := negroni.NewResponseWriter(w)

		next(lrw, r.WithContext(context.WithValue(r.Context(), RequestIDContextKey, requestID)))

		serviceLogger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", lrw.Status()).
			Int("size", lrw.Size()).
			Dur("duration", time.Since(requestAt)).
			Msg("request served")
	}
}
