package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth"
	internalerrors "github.com/jamesprial/mcp-tool-gateway/internal/errors"
	"github.com/jamesprial/mcp-tool-gateway/internal/mcp"
	"github.com/jamesprial/mcp-tool-gateway/internal/transport/transportcore"
	pkgoauth "github.com/jamesprial/mcp-tool-gateway/pkg/oauth"
)

// MaxRequestBytes bounds a single JSON-RPC request body.
const MaxRequestBytes = 1 << 20

// mcpHandler handles MCP protocol requests over HTTP.
type mcpHandler struct {
	handler   mcp.Handler
	responder transportcore.ErrorResponder
	logger    *slog.Logger
}

// NewMCPHandler creates a handler for MCP JSON-RPC requests.
// JSON-RPC errors are returned with HTTP 200, except Unauthorized which is
// returned with HTTP 401 and a bearer challenge. Notifications get 202.
func NewMCPHandler(handler mcp.Handler, responder transportcore.ErrorResponder, logger *slog.Logger) http.Handler {
	if handler == nil {
		panic("handler cannot be nil")
	}
	if responder == nil {
		panic("responder cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &mcpHandler{
		handler:   handler,
		responder: responder,
		logger:    logger,
	}
}

// ServeHTTP handles POST requests for MCP protocol.
func (h *mcpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.responder.BadRequest(w, transportcore.ErrRequestTooLarge)
			return
		}
		h.responder.BadRequest(w, err)
		return
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		h.sendJSONRPCError(w, nil, mcp.CodeInvalidRequest, "Invalid request", errors.New("batch requests are not supported"))
		return
	}

	var req mcp.Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Debug("failed to parse JSON-RPC request", slog.String("error", err.Error()))
		h.sendJSONRPCError(w, nil, mcp.CodeParseError, "Parse error", err)
		return
	}

	if err := req.Validate(); err != nil {
		h.sendJSONRPCError(w, req.ID, mcp.CodeInvalidRequest, "Invalid request", err)
		return
	}

	resp, err := h.handler.HandleRequest(r.Context(), &req)
	if err != nil {
		h.logger.Error("MCP handler error",
			slog.String("error", err.Error()),
			slog.String("method", req.Method),
		)
		h.sendJSONRPCError(w, req.ID, mcp.CodeInternalError, "Internal error", err)
		return
	}

	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if resp.Error != nil && resp.Error.Code == mcp.CodeUnauthorized {
		h.responder.Unauthorized(w, challengeFor(r, resp.Error), resp)
		return
	}

	h.sendJSONRPCResponse(w, resp)
}

// challengeFor builds the RFC 6750 challenge. A request that carried no
// bearer token gets a challenge without an error code (RFC 6750 section 3.1).
func challengeFor(r *http.Request, rpcErr *mcp.Error) *internalerrors.OAuthError {
	if auth.BearerFromContext(r.Context()) == "" {
		return &internalerrors.OAuthError{}
	}
	return internalerrors.NewOAuthError(internalerrors.ErrorCodeInvalidToken, rpcErr.Message)
}

// sendJSONRPCResponse sends a JSON-RPC response to the client.
func (h *mcpHandler) sendJSONRPCResponse(w http.ResponseWriter, resp *mcp.Response) {
	w.Header().Set(pkgoauth.HeaderContentType, pkgoauth.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode JSON-RPC response", slog.String("error", err.Error()))
	}
}

// sendJSONRPCError sends a JSON-RPC error response to the client.
func (h *mcpHandler) sendJSONRPCError(w http.ResponseWriter, id any, code int, message string, cause error) {
	h.sendJSONRPCResponse(w, &mcp.Response{
		JSONRPC: mcp.JSONRPCVersion,
		ID:      id,
		Error: &mcp.Error{
			Code:    code,
			Message: message,
			Cause:   cause,
		},
	})
}
