package mcp

import (
	"errors"

	"github.com/jamesprial/mcp-tool-gateway/internal/gateway"
)

// Sentinel errors carried as the Cause of protocol-level error responses.
var (
	// ErrInvalidRequest indicates the JSON-RPC request is invalid or malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrMethodNotFound indicates the requested JSON-RPC method does not exist.
	ErrMethodNotFound = errors.New("method not found")

	// ErrInvalidParams indicates the method parameters are invalid.
	ErrInvalidParams = errors.New("invalid params")
)

// kindCodes maps dispatcher failure kinds onto JSON-RPC codes.
var kindCodes = map[gateway.Kind]int{
	gateway.KindMalformedRequest: CodeInvalidParams,
	gateway.KindValidationError:  CodeInvalidParams,
	gateway.KindInternalError:    CodeInternalError,
	gateway.KindUnauthorized:     CodeUnauthorized,
	gateway.KindForbidden:        CodeForbidden,
	gateway.KindUnknownTool:      CodeToolNotFound,
	gateway.KindTimeout:          CodeTimeout,
	gateway.KindCancelled:        CodeCancelled,
}

// CodeForKind returns the JSON-RPC error code for a failure kind.
// Unrecognized kinds map to CodeInternalError.
func CodeForKind(kind gateway.Kind) int {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return CodeInternalError
}

// failureError converts a dispatcher failure into a JSON-RPC error whose
// data always carries the stable kind string.
func failureError(f *gateway.Failure) *Error {
	data := map[string]any{
		"kind":      string(f.Kind),
		"retryable": f.Kind.Retryable(),
	}
	for k, v := range f.Details {
		data[k] = v
	}
	return &Error{
		Code:    CodeForKind(f.Kind),
		Message: f.Message,
		Data:    data,
		Cause:   f,
	}
}
