package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/jamesprial/mcp-tool-gateway/internal/gateway"
	"github.com/jamesprial/mcp-tool-gateway/internal/transport/transportcore"
)

// NewRecoveryMiddleware creates middleware that recovers from panics outside
// tool handlers (the dispatcher recovers those itself). It logs the stack and
// returns a generic 500. http.ErrAbortHandler is re-panicked.
// If logger is nil, it uses the default slog logger.
func NewRecoveryMiddleware(responder transportcore.ErrorResponder, logger *slog.Logger) transportcore.Middleware {
	if responder == nil {
		panic("responder cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				logger.Error("panic recovered",
					slog.Any("panic", recovered),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", gateway.RequestIDFromContext(r.Context())),
					slog.String("stack", string(debug.Stack())),
				)

				responder.InternalError(w, fmt.Errorf("panic: %v", recovered))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
