// Package transport provides the HTTP transport layer for the MCP tool gateway.
//
// # Architecture
//
//	internal/transport/
//	├── transport.go              # Public interfaces
//	├── errors.go                 # Transport sentinels
//	├── wire.go                   # Factory functions
//	├── transportcore/            # Interfaces shared with internal packages
//	└── internal/
//	    ├── http/                 # chi router, server lifecycle, error responder
//	    ├── middleware/           # recovery, request id, logging, bearer
//	    ├── handlers/             # /mcp, /health, metadata
//	    └── mocks/                # test doubles
//
// # Authentication
//
// The transport does not verify tokens. The bearer middleware copies the
// token from the Authorization header into the request context and the
// dispatcher verifies it, so every tools/call produces exactly one terminal
// event whatever its outcome. When the MCP layer answers with the
// Unauthorized code the HTTP status becomes 401 and a challenge is added:
//
//	HTTP/1.1 401 Unauthorized
//	WWW-Authenticate: Bearer error="invalid_token", error_description="token has expired", resource_metadata="https://gw.example.com/.well-known/oauth-protected-resource"
//
// A request with no token at all gets a challenge without an error code.
// Every other JSON-RPC error, Forbidden included, is returned with HTTP 200.
//
// # Endpoints
//
//   - POST /mcp - MCP JSON-RPC 2.0
//   - GET /health - liveness
//   - GET /.well-known/oauth-protected-resource - RFC 9728 metadata
//   - GET /metrics - Prometheus exposition, when a gatherer is configured
//
// # Request IDs
//
// A valid X-Request-ID header is reused, otherwise a UUID is generated. The
// id is echoed on the response, logged, and becomes the requestId of any
// tool call made in the request.
package transport
