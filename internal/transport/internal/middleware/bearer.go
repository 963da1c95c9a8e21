// Package middleware provides HTTP middleware for the transport layer.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth"
	"github.com/jamesprial/mcp-tool-gateway/internal/transport/transportcore"
	pkgoauth "github.com/jamesprial/mcp-tool-gateway/pkg/oauth"
)

// NewBearerMiddleware copies the bearer token from the Authorization header
// into the request context. It never rejects a request: initialize and ping
// need no token, and tools/call must reach the dispatcher so the failure is
// reported as a terminal event. A missing or non-Bearer header stores "".
func NewBearerMiddleware(logger *slog.Logger) transportcore.Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extractBearerToken(r)
			if err != nil {
				logger.Debug("ignoring authorization header",
					slog.String("error", err.Error()),
					slog.String("path", r.URL.Path),
				)
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithBearer(r.Context(), token)))
		})
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header.
// An absent header is not an error; it yields "".
//
// Format: Authorization: Bearer <token>
func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get(pkgoauth.HeaderAuthorization)
	if authHeader == "" {
		return "", nil
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, pkgoauth.BearerToken) {
		return "", transportcore.ErrInvalidAuthorization
	}

	return strings.TrimSpace(token), nil
}
