// Package mocks provides mock implementations for testing the transport layer.
package mocks

import (
	"context"
	"net/http"
	"sync"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth"
	internalerrors "github.com/jamesprial/mcp-tool-gateway/internal/errors"
	"github.com/jamesprial/mcp-tool-gateway/internal/mcp"
)

// MetadataService is a mock implementation of auth.MetadataService.
type MetadataService struct {
	GetMetadataFunc    func(ctx context.Context) (*auth.ProtectedResourceMetadata, error)
	GetMetadataURLFunc func() string
}

// GetMetadata calls the mock GetMetadataFunc.
func (m *MetadataService) GetMetadata(ctx context.Context) (*auth.ProtectedResourceMetadata, error) {
	if m.GetMetadataFunc != nil {
		return m.GetMetadataFunc(ctx)
	}
	return &auth.ProtectedResourceMetadata{}, nil
}

// GetMetadataURL calls the mock GetMetadataURLFunc.
func (m *MetadataService) GetMetadataURL() string {
	if m.GetMetadataURLFunc != nil {
		return m.GetMetadataURLFunc()
	}
	return "https://gateway.example.com/.well-known/oauth-protected-resource"
}

// MCPHandler is a mock implementation of mcp.Handler.
type MCPHandler struct {
	HandleFunc func(ctx context.Context, req *mcp.Request) (*mcp.Response, error)
}

// HandleRequest calls the mock HandleFunc. Without one it echoes an empty result.
func (m *MCPHandler) HandleRequest(ctx context.Context, req *mcp.Request) (*mcp.Response, error) {
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, req)
	}
	return &mcp.Response{
		JSONRPC: mcp.JSONRPCVersion,
		ID:      req.ID,
		Result:  map[string]any{},
	}, nil
}

// ErrorResponder is a recording mock of transportcore.ErrorResponder.
type ErrorResponder struct {
	URL string

	mu                sync.Mutex
	unauthorizedCalls int
	lastChallenge     *internalerrors.OAuthError
	internalCalls     int
	lastInternalErr   error
	badRequestCalls   int
	lastBadRequestErr error
}

// MetadataURL returns URL.
func (m *ErrorResponder) MetadataURL() string {
	return m.URL
}

// Unauthorized records the call and writes a 401 response.
func (m *ErrorResponder) Unauthorized(w http.ResponseWriter, challenge *internalerrors.OAuthError, _ any) {
	m.mu.Lock()
	m.unauthorizedCalls++
	m.lastChallenge = challenge
	m.mu.Unlock()

	if challenge == nil {
		challenge = &internalerrors.OAuthError{}
	}
	w.Header().Set("WWW-Authenticate", challenge.WithResourceMetadata(m.URL).WWWAuthenticate())
	w.WriteHeader(http.StatusUnauthorized)
}

// InternalError records the call and writes a 500 response.
func (m *ErrorResponder) InternalError(w http.ResponseWriter, err error) {
	m.mu.Lock()
	m.internalCalls++
	m.lastInternalErr = err
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":"internal_error"}`))
}

// BadRequest records the call and writes a 400 response.
func (m *ErrorResponder) BadRequest(w http.ResponseWriter, err error) {
	m.mu.Lock()
	m.badRequestCalls++
	m.lastBadRequestErr = err
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(`{"error":"bad_request"}`))
}

// UnauthorizedCalls returns the number of Unauthorized calls and the last challenge.
func (m *ErrorResponder) UnauthorizedCalls() (int, *internalerrors.OAuthError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unauthorizedCalls, m.lastChallenge
}

// InternalCalls returns the number of InternalError calls and the last error.
func (m *ErrorResponder) InternalCalls() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.internalCalls, m.lastInternalErr
}

// BadRequestCalls returns the number of BadRequest calls and the last error.
func (m *ErrorResponder) BadRequestCalls() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.badRequestCalls, m.lastBadRequestErr
}
