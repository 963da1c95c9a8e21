package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth"
	"github.com/jamesprial/mcp-tool-gateway/internal/gateway"
)

// handler implements the Handler interface.
// It routes JSON-RPC requests to appropriate method handlers.
type handler struct {
	dispatcher   Dispatcher
	catalog      Catalog
	visibility   Visibility
	verifier     auth.Verifier
	serverInfo   serverInfo
	instructions string
	logger       *slog.Logger
}

// serverInfo contains metadata about the MCP server.
type serverInfo struct {
	Name    string
	Version string
}

// HandleRequest processes an MCP JSON-RPC request.
func (h *handler) HandleRequest(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return h.errorResponse(nil, CodeInvalidRequest, "request cannot be nil", nil, ErrInvalidRequest), nil
	}

	// Validate JSON-RPC version
	if req.JSONRPC != JSONRPCVersion {
		return h.errorResponse(req.ID, CodeInvalidRequest, "invalid jsonrpc version", nil, ErrInvalidRequest), nil
	}

	// Validate method is present
	if req.Method == "" {
		return h.errorResponse(req.ID, CodeInvalidRequest, "method is required", nil, ErrInvalidRequest), nil
	}

	if req.HasNullID() {
		return h.errorResponse(nil, CodeInvalidRequest, "id must be a string or number", nil, ErrInvalidRequest), nil
	}

	// Notifications (notifications/initialized, notifications/cancelled)
	// never get a response and never run tools.
	if req.IsNotification() {
		h.logger.Debug("notification received", slog.String("method", req.Method))
		return nil, nil
	}

	// Route to appropriate handler
	switch req.Method {
	case "initialize":
		return h.handleInitialize(ctx, req)
	case "ping":
		return h.result(req.ID, struct{}{}), nil
	case "tools/list":
		return h.handleToolsList(ctx, req)
	case "tools/call":
		return h.handleToolsCall(ctx, req)
	default:
		return h.errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil, ErrMethodNotFound), nil
	}
}

// handleInitialize handles the initialize method. It needs no token.
func (h *handler) handleInitialize(ctx context.Context, req *Request) (*Response, error) {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return h.errorResponse(req.ID, CodeInvalidParams, "invalid initialize params", err.Error(), fmt.Errorf("%w: %w", ErrInvalidParams, err)), nil
		}
	}

	h.logger.Debug("client initialized",
		slog.String("client", params.ClientInfo.Name),
		slog.String("client_version", params.ClientInfo.Version),
		slog.String("protocol_version", params.ProtocolVersion),
	)

	return h.result(req.ID, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo: ServerInfoResponse{
			Name:    h.serverInfo.Name,
			Version: h.serverInfo.Version,
		},
		Capabilities: Capabilities{
			Tools: &ToolsCapability{},
		},
		Instructions: h.instructions,
	}), nil
}

// handleToolsList returns the tools the caller could ever be allowed to call.
func (h *handler) handleToolsList(ctx context.Context, req *Request) (*Response, error) {
	claims, err := h.verifier.Verify(ctx, auth.BearerFromContext(ctx))
	if err != nil {
		return &Response{JSONRPC: JSONRPCVersion, ID: req.ID, Error: failureError(listAuthFailure(ctx, err))}, nil
	}

	tools := make([]ToolDefinition, 0)
	for _, t := range h.catalog.List() {
		if !h.visibility.Visible(claims, t.Name(), t.RequiredCapability()) {
			continue
		}
		tools = append(tools, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}

	return h.result(req.ID, ToolsListResult{Tools: tools}), nil
}

// listAuthFailure classifies a verification error the way the dispatcher
// does for tools/call.
func listAuthFailure(ctx context.Context, err error) *gateway.Failure {
	switch {
	case ctx.Err() != nil:
		return &gateway.Failure{Kind: gateway.KindCancelled, Message: "request was cancelled"}
	case errors.Is(err, context.DeadlineExceeded):
		return &gateway.Failure{Kind: gateway.KindTimeout, Message: "timed out fetching signing keys"}
	}
	reason, ok := auth.ReasonOf(err)
	if !ok {
		reason = auth.ReasonInvalidSignature
	}
	return &gateway.Failure{Kind: gateway.KindUnauthorized, Message: reason.Message()}
}

// handleToolsCall hands the call to the dispatcher. Undecodable params still
// go through the dispatcher so the call is reported like any other failure.
func (h *handler) handleToolsCall(ctx context.Context, req *Request) (*Response, error) {
	call := &gateway.ToolCallRequest{Token: auth.BearerFromContext(ctx)}
	if len(req.Params) > 0 {
		var params ToolsCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			h.logger.Debug("undecodable tools/call params", slog.String("error", err.Error()))
			call = nil
		} else {
			call.ToolName = params.Name
			call.Arguments = params.Arguments
		}
	}

	res := h.dispatcher.Handle(ctx, call)
	if res.Failure != nil {
		return &Response{JSONRPC: JSONRPCVersion, ID: req.ID, Error: failureError(res.Failure)}, nil
	}

	text, err := json.Marshal(res.Payload)
	if err != nil {
		h.logger.Error("tool payload is not JSON encodable",
			slog.String("request_id", res.RequestID),
			slog.String("error", err.Error()),
		)
		return &Response{JSONRPC: JSONRPCVersion, ID: req.ID, Error: failureError(&gateway.Failure{
			Kind:    gateway.KindInternalError,
			Message: "internal error",
		})}, nil
	}

	return h.result(req.ID, ToolsCallResult{
		Content:           []Content{{Type: "text", Text: string(text)}},
		StructuredContent: res.Payload,
	}), nil
}

func (h *handler) result(id any, result any) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// errorResponse creates a JSON-RPC error response. cause stays server-side.
func (h *handler) errorResponse(id any, code int, message string, data any, cause error) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
			Cause:   cause,
		},
	}
}
