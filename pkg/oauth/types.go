// Package oauth provides shared OAuth 2.1 bearer token constants used on the
// gateway's HTTP surface.
package oauth

// Token type constants as defined in RFC 6750.
const (
	// BearerToken is the OAuth 2.1 Bearer token type, as sent in the
	// Authorization header scheme.
	BearerToken = "Bearer"

	// BearerMethodHeader is the only bearer_methods_supported value the gateway
	// publishes. Tokens in query strings or form bodies are never read.
	BearerMethodHeader = "header"
)

// HTTP header names.
const (
	// HeaderAuthorization is the Authorization HTTP header name.
	HeaderAuthorization = "Authorization"

	// HeaderWWWAuthenticate is the WWW-Authenticate HTTP header name.
	HeaderWWWAuthenticate = "WWW-Authenticate"

	// HeaderContentType is the Content-Type HTTP header name.
	HeaderContentType = "Content-Type"

	// HeaderRequestID carries the request correlation id in both directions.
	HeaderRequestID = "X-Request-ID"
)

// Content type constants.
const (
	// ContentTypeJSON is the application/json content type.
	ContentTypeJSON = "application/json"
)
