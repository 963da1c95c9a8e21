// Package handlers provides HTTP handlers for the transport layer.
package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth"
	"github.com/jamesprial/mcp-tool-gateway/internal/transport/transportcore"
	pkgoauth "github.com/jamesprial/mcp-tool-gateway/pkg/oauth"
)

// metadataCacheControl lets clients reuse the document between 401 challenges.
const metadataCacheControl = "public, max-age=3600"

// metadataHandler publishes the gateway's RFC 9728 document. An MCP client
// that receives a 401 from /mcp follows the challenge's resource_metadata link
// here to learn which issuer mints tokens the gateway accepts.
type metadataHandler struct {
	service   auth.MetadataService
	responder transportcore.ErrorResponder
	logger    *slog.Logger
}

// NewMetadataHandler serves the document built from the gateway's configured
// resource URL and trusted issuer. GET and HEAD are accepted.
func NewMetadataHandler(service auth.MetadataService, responder transportcore.ErrorResponder, logger *slog.Logger) http.Handler {
	if service == nil {
		panic("service cannot be nil")
	}
	if responder == nil {
		panic("responder cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &metadataHandler{service: service, responder: responder, logger: logger}
}

func (h *metadataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	doc, err := h.service.GetMetadata(r.Context())
	if err != nil {
		h.responder.InternalError(w, err)
		return
	}

	// Encode before writing headers so a bad document is a 500, not a truncated 200.
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(doc); err != nil {
		h.logger.Error("failed to encode protected resource metadata", slog.String("error", err.Error()))
		h.responder.InternalError(w, err)
		return
	}

	w.Header().Set(pkgoauth.HeaderContentType, pkgoauth.ContentTypeJSON)
	w.Header().Set("Cache-Control", metadataCacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		h.logger.Debug("metadata write failed", slog.String("error", err.Error()))
	}
}
