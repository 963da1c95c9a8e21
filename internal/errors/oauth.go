package errors

import (
	"fmt"
	"strings"
)

// ErrorCodeInvalidToken is the RFC 6750 section 3.1 code for a bearer token
// that is malformed, expired, or fails verification.
const ErrorCodeInvalidToken = "invalid_token"

// OAuthError represents an RFC 6750 bearer token error.
// It is used to format WWW-Authenticate challenges on 401 responses.
type OAuthError struct {
	// ErrorCode is the OAuth error code (e.g., "invalid_token").
	// Omitted from the challenge when the request carried no token at all.
	ErrorCode string

	// ErrorDescription is a human-readable description of the error.
	ErrorDescription string

	// ResourceMetadata is the URL to the protected resource metadata endpoint (RFC 9728).
	ResourceMetadata string
}

// Error implements the error interface.
func (e *OAuthError) Error() string {
	if e.ErrorDescription != "" {
		return fmt.Sprintf("%s: %s", e.ErrorCode, e.ErrorDescription)
	}
	return e.ErrorCode
}

// NewOAuthError creates a new OAuthError with the given error code and description.
func NewOAuthError(errorCode, errorDescription string) *OAuthError {
	return &OAuthError{
		ErrorCode:        errorCode,
		ErrorDescription: errorDescription,
	}
}

// WithResourceMetadata sets the resource metadata URL and returns the error for chaining.
func (e *OAuthError) WithResourceMetadata(url string) *OAuthError {
	e.ResourceMetadata = url
	return e
}

// WWWAuthenticate formats the OAuthError as a WWW-Authenticate header value
// per RFC 6750.
//
// Example output:
//
//	Bearer error="invalid_token", error_description="token expired", resource_metadata="https://example.com/.well-known/oauth-protected-resource"
func (e *OAuthError) WWWAuthenticate() string {
	var parts []string

	if e.ErrorCode != "" {
		parts = append(parts, fmt.Sprintf(`error="%s"`, escapeQuotes(e.ErrorCode)))
	}
	if e.ErrorDescription != "" {
		parts = append(parts, fmt.Sprintf(`error_description="%s"`, escapeQuotes(e.ErrorDescription)))
	}
	if e.ResourceMetadata != "" {
		parts = append(parts, fmt.Sprintf(`resource_metadata="%s"`, escapeQuotes(e.ResourceMetadata)))
	}

	if len(parts) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(parts, ", ")
}

// escapeQuotes escapes double quotes in strings for use in header values.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
