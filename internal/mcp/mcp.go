// Package mcp provides the Model Context Protocol (MCP) JSON-RPC 2.0 surface
// of the gateway: initialize, ping, tools/list and tools/call.
//
// The package owns protocol framing only. Tool calls are executed by a
// Dispatcher and their failures are mapped onto JSON-RPC error codes.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth"
	"github.com/jamesprial/mcp-tool-gateway/internal/gateway"
	"github.com/jamesprial/mcp-tool-gateway/internal/registry"
)

// Handler processes MCP protocol requests.
// Implementations must handle JSON-RPC 2.0 requests and route them
// to appropriate method handlers (initialize, tools/list, tools/call, etc.).
type Handler interface {
	// HandleRequest processes an MCP JSON-RPC request and returns a response.
	// The context carries the caller's bearer token and request id.
	//
	// A nil response means the request was a notification and nothing is sent back.
	HandleRequest(ctx context.Context, req *Request) (*Response, error)
}

// Dispatcher executes tool calls. *gateway.Dispatcher satisfies it.
type Dispatcher interface {
	Handle(ctx context.Context, req *gateway.ToolCallRequest) *gateway.ToolResult
}

// Catalog enumerates registered tools. *registry.Registry satisfies it.
type Catalog interface {
	List() []*registry.Tool
}

// Visibility decides which tools a caller is shown. *policy.Store satisfies it.
type Visibility interface {
	Visible(claims *auth.Claims, tool, capability string) bool
}

// Request represents an MCP JSON-RPC 2.0 request.
type Request struct {
	// JSONRPC is the JSON-RPC version, must be "2.0".
	JSONRPC string `json:"jsonrpc"`

	// ID is the request identifier, a string or a number.
	// Omitted for notification requests.
	ID any `json:"id,omitempty"`

	// Method is the MCP method name to invoke.
	Method string `json:"method"`

	// Params contains method-specific parameters as raw JSON.
	Params json.RawMessage `json:"params,omitempty"`

	// hasID records that the decoded message carried an "id" member,
	// including an explicit null.
	hasID bool
}

// UnmarshalJSON decodes a request and records whether "id" was present, so
// that {"id": null} is not mistaken for a notification.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	_, p.hasID = members["id"]
	*r = Request(p)
	return nil
}

// Response represents an MCP JSON-RPC 2.0 response.
type Response struct {
	// JSONRPC is the JSON-RPC version, always "2.0".
	JSONRPC string `json:"jsonrpc"`

	// ID matches the request ID, or null for error responses without a valid ID.
	ID any `json:"id"`

	// Result contains the successful response data.
	// Must not be present if Error is set.
	Result any `json:"result,omitempty"`

	// Error contains error information if the request failed.
	// Must not be present if Result is set.
	Error *Error `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	// Code is the error code indicating the error type.
	Code int `json:"code"`

	// Message is a short description of the error.
	Message string `json:"message"`

	// Data contains additional information about the error (optional).
	Data any `json:"data,omitempty"`

	// Cause is the underlying error (not serialized to JSON).
	Cause error `json:"-"`
}

// Protocol constants
const (
	// ProtocolVersion is the MCP protocol version this implementation supports.
	ProtocolVersion = "2025-06-18"

	// JSONRPCVersion is the JSON-RPC version used by MCP.
	JSONRPCVersion = "2.0"
)

// Standard JSON-RPC 2.0 error codes
const (
	// CodeParseError indicates invalid JSON was received by the server.
	CodeParseError = -32700

	// CodeInvalidRequest indicates the JSON sent is not a valid Request object.
	CodeInvalidRequest = -32600

	// CodeMethodNotFound indicates the method does not exist or is not available.
	CodeMethodNotFound = -32601

	// CodeInvalidParams indicates invalid method parameters.
	CodeInvalidParams = -32602

	// CodeInternalError indicates an internal JSON-RPC error.
	CodeInternalError = -32603
)

// Gateway error codes, from the JSON-RPC server error range.
const (
	// CodeUnauthorized indicates the bearer token was missing or rejected.
	CodeUnauthorized = -32001

	// CodeForbidden indicates the policy denied the call.
	CodeForbidden = -32002

	// CodeToolNotFound indicates the requested tool was not found.
	CodeToolNotFound = -32003

	// CodeTimeout indicates the call exceeded its time budget.
	CodeTimeout = -32004

	// CodeCancelled indicates the caller went away before the call finished.
	CodeCancelled = -32005
)

// ToolDefinition describes a tool's interface for client discovery.
type ToolDefinition struct {
	// Name is the unique identifier for this tool.
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description,omitempty"`

	// InputSchema is a JSON Schema describing the tool's expected parameters.
	InputSchema map[string]any `json:"inputSchema"`
}

// NewError creates a new Error with the given code, message, and optional data.
func NewError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// Error implements the error interface for Error.
func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("JSON-RPC error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Validate checks if the request is valid according to JSON-RPC 2.0 specification.
func (r *Request) Validate() error {
	if r.JSONRPC != JSONRPCVersion {
		return ErrInvalidRequest
	}
	if r.Method == "" {
		return ErrInvalidRequest
	}
	if r.HasNullID() {
		return ErrInvalidRequest
	}
	return nil
}

// HasNullID reports whether the request carried an explicit null id.
// MCP request ids must be a string or a number.
func (r *Request) HasNullID() bool {
	return r.hasID && r.ID == nil
}

// IsNotification reports whether the request expects no response. Only a
// request without an "id" member is a notification.
func (r *Request) IsNotification() bool {
	return r.ID == nil && !r.hasID
}

// IsError returns true if the response contains an error.
func (r *Response) IsError() bool {
	return r.Error != nil
}
