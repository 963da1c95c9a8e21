package transport

import (
	"github.com/jamesprial/mcp-tool-gateway/internal/transport/transportcore"
)

// Re-exported so callers do not import transportcore.
var (
	ErrInvalidAuthorization = transportcore.ErrInvalidAuthorization
	ErrRequestTooLarge      = transportcore.ErrRequestTooLarge
	ErrMethodNotAllowed     = transportcore.ErrMethodNotAllowed
	ErrServerClosed         = transportcore.ErrServerClosed
)
