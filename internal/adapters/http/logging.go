package http

import (
	"context"
	"log/slog"
)

// httpLog returns the adapter-scoped logger, carrying the request id whenever
// the middleware put one on the context.
func httpLog(ctx context.Context) *slog.Logger {
	logger := slog.Default().With(
		"service", "Settlement-Service",
		"module", "http",
		"layer", "adapter",
	)
	if id := requestIDFromContext(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	return logger
}

// logFailure records a handler error at the severity its status implies:
// 5xx at error, everything else at warn.
func logFailure(ctx context.Context, operation string, status int, code, message string, err error) {
	attrs := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", status,
		"error_code", code,
		"message", message,
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	if status >= 500 {
		httpLog(ctx).ErrorContext(ctx, "http operation failed", attrs...)
		return
	}
	httpLog(ctx).WarnContext(ctx, "http operation failed", attrs...)
}
