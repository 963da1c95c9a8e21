package gateway

import (
	"fmt"

	"github.com/jamesprial/mcp-tool-gateway/internal/telemetry"
)

// Kind is the stable failure classification callers branch on.
type Kind string

// Failure kinds.
const (
	KindMalformedRequest Kind = "MalformedRequest"
	KindUnauthorized     Kind = "Unauthorized"
	KindUnknownTool      Kind = "UnknownTool"
	KindValidationError  Kind = "ValidationError"
	KindForbidden        Kind = "Forbidden"
	KindTimeout          Kind = "Timeout"
	KindCancelled        Kind = "Cancelled"
	KindInternalError    Kind = "InternalError"
)

// Retryable reports whether a caller may retry an idempotent call that
// failed with this kind.
func (k Kind) Retryable() bool {
	return k == KindTimeout || k == KindCancelled
}

// ToolCallRequest is one inbound tools/call.
type ToolCallRequest struct {
	// ID correlates the call. One is generated when empty.
	ID string

	ToolName  string
	Arguments map[string]any

	// Token is the raw bearer token, possibly empty.
	Token string
}

// Failure describes why a call did not succeed.
type Failure struct {
	Kind    Kind
	Message string

	// Details is set for ValidationError only.
	Details map[string]any
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// ToolResult is either a success payload or a Failure.
type ToolResult struct {
	RequestID string
	Payload   map[string]any
	Failure   *Failure
}

// OK reports whether the call succeeded.
func (r *ToolResult) OK() bool {
	return r.Failure == nil
}

// Outcome is the metrics label for the result.
func (r *ToolResult) Outcome() string {
	if r.Failure == nil {
		return telemetry.OutcomeSuccess
	}
	return string(r.Failure.Kind)
}

func success(id string, payload map[string]any) *ToolResult {
	if payload == nil {
		payload = map[string]any{}
	}
	return &ToolResult{RequestID: id, Payload: payload}
}

func failure(id string, kind Kind, message string, details map[string]any) *ToolResult {
	return &ToolResult{
		RequestID: id,
		Failure:   &Failure{Kind: kind, Message: message, Details: details},
	}
}
