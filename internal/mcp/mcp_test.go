package mcp

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jamesprial/mcp-tool-gateway/internal/gateway"
)

func TestError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{name: "without data", err: NewError(CodeMethodNotFound, "method not found", nil), want: "JSON-RPC error -32601: method not found"},
		{name: "with data", err: NewError(CodeInvalidParams, "bad", "x"), want: "JSON-RPC error -32602: bad (data: x)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := &Error{Code: CodeInternalError, Message: "internal error", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if (&Error{}).Unwrap() != nil {
		t.Error("Unwrap() on error without cause should be nil")
	}
}

func TestError_CauseNotSerialized(t *testing.T) {
	t.Parallel()

	err := &Error{Code: CodeInternalError, Message: "internal error", Cause: errors.New("secret detail")}
	data, mErr := json.Marshal(err)
	if mErr != nil {
		t.Fatalf("json.Marshal() error = %v", mErr)
	}
	if strings.Contains(string(data), "secret detail") {
		t.Errorf("serialized error leaked its cause: %s", data)
	}
}

func TestRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{name: "valid", req: Request{JSONRPC: "2.0", ID: 1, Method: "ping"}},
		{name: "wrong version", req: Request{JSONRPC: "1.0", ID: 1, Method: "ping"}, wantErr: true},
		{name: "missing method", req: Request{JSONRPC: "2.0", ID: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Validate() error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestRequest_IsNotification(t *testing.T) {
	t.Parallel()

	var withID, without Request
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":0,"method":"ping"}`), &withID); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`), &without); err != nil {
		t.Fatal(err)
	}
	if withID.IsNotification() {
		t.Error("request with id 0 reported as notification")
	}
	if !without.IsNotification() {
		t.Error("request without id not reported as notification")
	}
}

func TestRequest_NullID(t *testing.T) {
	t.Parallel()

	var req Request
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":null,"method":"tools/call"}`), &req); err != nil {
		t.Fatal(err)
	}
	if req.IsNotification() {
		t.Error("request with null id reported as notification")
	}
	if !req.HasNullID() {
		t.Error("HasNullID() = false, want true")
	}
	if err := req.Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Validate() = %v, want ErrInvalidRequest", err)
	}

	built := Request{JSONRPC: JSONRPCVersion, ID: "a", Method: "ping"}
	if built.IsNotification() || built.HasNullID() {
		t.Error("request built with an id misclassified")
	}
}

func TestResponse_IDAlwaysSerialized(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(&Response{JSONRPC: JSONRPCVersion, Error: NewError(CodeParseError, "Parse error", nil)})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"id":null`) {
		t.Errorf("response = %s, want explicit null id", data)
	}
}

func TestCodeForKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind gateway.Kind
		want int
	}{
		{gateway.KindMalformedRequest, -32602},
		{gateway.KindValidationError, -32602},
		{gateway.KindInternalError, -32603},
		{gateway.KindUnauthorized, -32001},
		{gateway.KindForbidden, -32002},
		{gateway.KindUnknownTool, -32003},
		{gateway.KindTimeout, -32004},
		{gateway.KindCancelled, -32005},
		{gateway.Kind("Bogus"), -32603},
	}

	seen := map[int]gateway.Kind{}
	for _, tt := range tests {
		if got := CodeForKind(tt.kind); got != tt.want {
			t.Errorf("CodeForKind(%s) = %d, want %d", tt.kind, got, tt.want)
		}
		if tt.want <= -32001 && tt.want >= -32005 {
			if prev, dup := seen[tt.want]; dup {
				t.Errorf("code %d shared by %s and %s", tt.want, prev, tt.kind)
			}
			seen[tt.want] = tt.kind
		}
	}
}

func TestFailureError(t *testing.T) {
	t.Parallel()

	err := failureError(&gateway.Failure{
		Kind:    gateway.KindValidationError,
		Message: "arguments do not match the tool input schema",
		Details: map[string]any{"errors": []any{map[string]any{"field": "/namespace"}}},
	})
	if err.Code != CodeInvalidParams {
		t.Errorf("Code = %d, want %d", err.Code, CodeInvalidParams)
	}
	data := err.Data.(map[string]any)
	if data["kind"] != "ValidationError" {
		t.Errorf("data.kind = %v", data["kind"])
	}
	if data["retryable"] != false {
		t.Errorf("data.retryable = %v, want false", data["retryable"])
	}
	if _, ok := data["errors"]; !ok {
		t.Errorf("data = %v, want validation details merged", data)
	}

	timeout := failureError(&gateway.Failure{Kind: gateway.KindTimeout, Message: "slow"})
	if timeout.Data.(map[string]any)["retryable"] != true {
		t.Error("Timeout should be marked retryable")
	}
}
