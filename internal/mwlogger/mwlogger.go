// Package mwlogger puts a scoped zerolog logger into request and task contexts
package mwlogger

import (
	"context"
	"net/http"

	"github.com/wb-go/wbf/helpers"
	"github.com/wb-go/wbf/zlog"
)

type loggerKey struct{}

const RequestIDHeader = "X-Request-Id"

// NewMWLogger assigns a request ID (or reuses the incoming one) and puts a logger with it into the request context.
func NewMWLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = helpers.CreateUUID()
		}
		w.Header().Set(RequestIDHeader, reqID)

		logger := zlog.Logger.With().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		ctx := context.WithValue(r.Context(), loggerKey{}, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithTask is used by the worker: every log line of one task carries its ID.
func WithTask(ctx context.Context, taskID string) context.Context {
	logger := LoggerFromContext(ctx).With().
		Str("task_id", taskID).
		Logger()
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext extracts logger from context - used in service-layer
func LoggerFromContext(ctx context.Context) zlog.Zerolog {
	if l, ok := ctx.Value(loggerKey{}).(zlog.Zerolog); ok {
		return l
	}
	return zlog.Logger
}
