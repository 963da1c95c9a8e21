package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	internalerrors "github.com/jamesprial/mcp-tool-gateway/internal/errors"
	"github.com/jamesprial/mcp-tool-gateway/internal/transport/transportcore"
	"github.com/jamesprial/mcp-tool-gateway/pkg/oauth"
)

// errorResponse represents a JSON error response body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// errorResponder implements transportcore.ErrorResponder.
type errorResponder struct {
	metadataURL string
	logger      *slog.Logger
}

// NewErrorResponder creates a new error responder with the given metadata URL.
// The metadata URL is added to every challenge that does not already carry one.
func NewErrorResponder(metadataURL string, logger *slog.Logger) transportcore.ErrorResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &errorResponder{
		metadataURL: metadataURL,
		logger:      logger,
	}
}

// MetadataURL returns the resource metadata URL placed in challenges.
func (e *errorResponder) MetadataURL() string {
	return e.metadataURL
}

// Unauthorized sends a 401 Unauthorized response with WWW-Authenticate header.
//
// Format: WWW-Authenticate: Bearer error="invalid_token", error_description="<desc>", resource_metadata="<url>"
func (e *errorResponder) Unauthorized(w http.ResponseWriter, challenge *internalerrors.OAuthError, body any) {
	if challenge == nil {
		challenge = &internalerrors.OAuthError{}
	}
	if challenge.ResourceMetadata == "" {
		challenge = challenge.WithResourceMetadata(e.metadataURL)
	}

	w.Header().Set(oauth.HeaderWWWAuthenticate, challenge.WWWAuthenticate())
	w.Header().Set(oauth.HeaderContentType, oauth.ContentTypeJSON)
	w.WriteHeader(http.StatusUnauthorized)

	if body == nil {
		body = errorResponse{Error: "unauthorized", Message: "Authentication required"}
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		e.logger.Error("failed to encode error response", slog.String("error", err.Error()))
	}
}

// InternalError sends a 500 Internal Server Error response.
// err is logged, never written to the client.
func (e *errorResponder) InternalError(w http.ResponseWriter, err error) {
	e.logger.Error("internal server error", slog.Any("error", err))
	writeJSONError(w, http.StatusInternalServerError, "internal_error", "An internal server error occurred")
}

// BadRequest sends a 400 Bad Request response.
func (e *errorResponder) BadRequest(w http.ResponseWriter, err error) {
	message := "Invalid request"
	if err != nil {
		message = err.Error()
	}
	e.logger.Warn("bad request", slog.String("error", message))
	writeJSONError(w, http.StatusBadRequest, "bad_request", message)
}
