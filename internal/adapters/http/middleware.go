package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/tradeforge/settlement/internal/ports"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyClaims    ctxKey = "caller_claims"
)

// observeMiddleware assigns the request id, echoes it back to the caller, and
// emits one access log line per request at a severity matching the status.
func observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)

		tap := &responseTap{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(tap, r.WithContext(ctx))

		outcome := "success"
		if tap.status >= 400 {
			outcome = "failure"
		}
		attrs := []any{
			"operation", "http_request",
			"outcome", outcome,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", tap.status,
			"bytes", tap.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case tap.status >= 500:
			httpLog(ctx).ErrorContext(ctx, "http request completed", attrs...)
		case tap.status >= 400:
			httpLog(ctx).WarnContext(ctx, "http request completed", attrs...)
		default:
			httpLog(ctx).InfoContext(ctx, "http request completed", attrs...)
		}
	})
}

// responseTap records what the handler wrote so the access log can report it.
type responseTap struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (t *responseTap) WriteHeader(status int) {
	t.status = status
	t.ResponseWriter.WriteHeader(status)
}

func (t *responseTap) Write(p []byte) (int, error) {
	n, err := t.ResponseWriter.Write(p)
	t.bytes += n
	return n, err
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				httpLog(r.Context()).ErrorContext(r.Context(), "handler panicked",
					"operation", "http_panic_recovery",
					"outcome", "failure",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", v,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware resolves the caller identity every mutating endpoint settles
// on behalf of. The token proves who is presenting the order; the order
// signature separately proves who authorized it.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeMissingBearerError(r.Context(), w, "auth_middleware")
			return
		}

		claims, err := h.verifier.ParseAndValidate(raw)
		if err != nil {
			writeMappedError(r.Context(), w, "auth_middleware", err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

func callerFromContext(ctx context.Context) (common.Address, bool) {
	claims, ok := ctx.Value(ctxKeyClaims).(ports.CallerClaims)
	if !ok {
		return common.Address{}, false
	}
	return claims.Account, true
}

func bearerTokenFromHeader(header string) (string, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", errors.New("missing bearer token")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
