package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jamesprial/mcp-tool-gateway/internal/gateway"
	"github.com/jamesprial/mcp-tool-gateway/internal/transport/transportcore"
	pkgoauth "github.com/jamesprial/mcp-tool-gateway/pkg/oauth"
)

// MaxRequestIDLength caps client supplied request ids.
const MaxRequestIDLength = 128

// NewRequestIDMiddleware assigns every request a correlation id. A valid
// X-Request-ID header is reused; anything else is replaced with a UUID.
// The id is echoed in the response header and stored for the dispatcher.
func NewRequestIDMiddleware() transportcore.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(pkgoauth.HeaderRequestID)
			if !validRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(pkgoauth.HeaderRequestID, id)
			next.ServeHTTP(w, r.WithContext(gateway.ContextWithRequestID(r.Context(), id)))
		})
	}
}

// validRequestID accepts 1..MaxRequestIDLength visible ASCII characters.
func validRequestID(id string) bool {
	if id == "" || len(id) > MaxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
