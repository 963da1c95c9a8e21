package mcp

import (
	"log/slog"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth"
)

// Config holds configuration for MCP services.
type Config struct {
	// ServerName is the name of the MCP server.
	ServerName string

	// ServerVersion is the version of the MCP server.
	ServerVersion string

	// Instructions is returned from initialize when set.
	Instructions string

	// Logger is optional.
	Logger *slog.Logger
}

// NewHandler creates a new MCP protocol handler.
// tools/list verifies the caller with verifier and filters catalog through
// visibility; tools/call is delegated to dispatcher.
func NewHandler(cfg *Config, dispatcher Dispatcher, catalog Catalog, visibility Visibility, verifier auth.Verifier) Handler {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if dispatcher == nil {
		panic("dispatcher cannot be nil")
	}
	if catalog == nil {
		panic("catalog cannot be nil")
	}
	if visibility == nil {
		panic("visibility cannot be nil")
	}
	if verifier == nil {
		panic("verifier cannot be nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &handler{
		dispatcher: dispatcher,
		catalog:    catalog,
		visibility: visibility,
		verifier:   verifier,
		serverInfo: serverInfo{
			Name:    cfg.ServerName,
			Version: cfg.ServerVersion,
		},
		instructions: cfg.Instructions,
		logger:       logger,
	}
}
