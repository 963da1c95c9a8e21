// Package transport provides the HTTP transport layer for the tool gateway.
// It carries bearer tokens and request ids from HTTP into the MCP handler
// and maps JSON-RPC failures back onto HTTP status codes.
package transport

import (
	"github.com/jamesprial/mcp-tool-gateway/internal/transport/transportcore"
)

// Middleware is a function that wraps an http.Handler.
type Middleware = transportcore.Middleware

// Server manages the HTTP server lifecycle.
type Server = transportcore.Server

// Router handles HTTP request routing and middleware composition.
type Router = transportcore.Router

// ErrorResponder writes HTTP error responses with RFC 6750 challenges.
type ErrorResponder = transportcore.ErrorResponder
