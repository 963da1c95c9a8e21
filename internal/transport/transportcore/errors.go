package transportcore

import (
	"errors"
)

// Sentinel errors for transport operations.
// For creating domain errors with context, wrap these with DomainError from internal/errors.
var (
	// ErrInvalidAuthorization indicates an Authorization header that is not a Bearer credential.
	ErrInvalidAuthorization = errors.New("invalid authorization header")

	// ErrRequestTooLarge indicates the request body exceeded the configured limit.
	ErrRequestTooLarge = errors.New("request body too large")

	// ErrMethodNotAllowed indicates the HTTP method is not allowed for the endpoint.
	ErrMethodNotAllowed = errors.New("method not allowed")

	// ErrServerClosed indicates the server has been closed and cannot accept requests.
	ErrServerClosed = errors.New("server closed")
)
