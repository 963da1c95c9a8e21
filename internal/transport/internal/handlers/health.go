package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	pkgoauth "github.com/jamesprial/mcp-tool-gateway/pkg/oauth"
)

// healthResponse represents the JSON response for health checks.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Tools   int    `json:"tools"`
}

// ToolCounter reports how many tools are registered.
type ToolCounter func() int

// healthHandler provides a liveness endpoint.
type healthHandler struct {
	version string
	tools   ToolCounter
}

// NewHealthHandler creates a handler for the /health endpoint.
// It needs no token and never touches the key set or the cluster.
func NewHealthHandler(version string, tools ToolCounter) http.Handler {
	if tools == nil {
		panic("tool counter cannot be nil")
	}
	return &healthHandler{version: version, tools: tools}
}

// ServeHTTP handles GET and HEAD requests for health checks.
func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set(pkgoauth.HeaderContentType, pkgoauth.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	resp := healthResponse{Status: "ok", Version: h.version, Tools: h.tools()}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode health response", slog.String("error", err.Error()))
	}
}
