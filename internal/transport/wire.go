package transport

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth"
	"github.com/jamesprial/mcp-tool-gateway/internal/config"
	"github.com/jamesprial/mcp-tool-gateway/internal/mcp"
	"github.com/jamesprial/mcp-tool-gateway/internal/transport/internal/handlers"
	transporthttp "github.com/jamesprial/mcp-tool-gateway/internal/transport/internal/http"
	"github.com/jamesprial/mcp-tool-gateway/internal/transport/internal/middleware"
)

// Route patterns served by the gateway.
const (
	RouteMCP      = "POST /mcp"
	RouteHealth   = "GET /health"
	RouteMetadata = "GET /.well-known/oauth-protected-resource"
	RouteMetrics  = "GET /metrics"
)

// NewServer creates a configured HTTP server.
func NewServer(cfg *config.Config, router Router, logger *slog.Logger) Server {
	return transporthttp.NewServer(cfg, router, logger)
}

// NewRouter creates a new HTTP router backed by chi.
func NewRouter() Router {
	return transporthttp.NewRouter()
}

// NewErrorResponder creates an error responder whose challenges point at metadataURL.
func NewErrorResponder(metadataURL string, logger *slog.Logger) ErrorResponder {
	return transporthttp.NewErrorResponder(metadataURL, logger)
}

// NewMetadataHandler creates the RFC 9728 protected resource metadata handler.
func NewMetadataHandler(service auth.MetadataService, responder ErrorResponder, logger *slog.Logger) http.Handler {
	return handlers.NewMetadataHandler(service, responder, logger)
}

// NewMCPHandler creates the JSON-RPC endpoint handler.
func NewMCPHandler(handler mcp.Handler, responder ErrorResponder, logger *slog.Logger) http.Handler {
	return handlers.NewMCPHandler(handler, responder, logger)
}

// NewHealthHandler creates the liveness handler.
func NewHealthHandler(version string, toolCount func() int) http.Handler {
	return handlers.NewHealthHandler(version, toolCount)
}

// NewMetricsHandler serves gatherer in the Prometheus text format.
func NewMetricsHandler(gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(logger.Handler(), slog.LevelError),
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// NewBearerMiddleware copies the bearer token into the request context.
func NewBearerMiddleware(logger *slog.Logger) Middleware {
	return middleware.NewBearerMiddleware(logger)
}

// NewRequestIDMiddleware assigns each request a correlation id.
func NewRequestIDMiddleware() Middleware {
	return middleware.NewRequestIDMiddleware()
}

// NewLoggingMiddleware creates request logging middleware.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return middleware.NewLoggingMiddleware(logger)
}

// NewRecoveryMiddleware creates panic recovery middleware.
func NewRecoveryMiddleware(responder ErrorResponder, logger *slog.Logger) Middleware {
	return middleware.NewRecoveryMiddleware(responder, logger)
}

// Config holds the configuration needed for the transport layer.
type Config struct {
	// ServerConfig is the server configuration.
	ServerConfig *config.Config

	// MetadataService provides protected resource metadata.
	MetadataService auth.MetadataService

	// MCPHandler processes MCP protocol requests.
	MCPHandler mcp.Handler

	// ToolCount reports the registered tool count on /health.
	ToolCount func() int

	// Gatherer is served on /metrics when set.
	Gatherer prometheus.Gatherer

	// Version is reported on /health.
	Version string

	// Logger is optional.
	Logger *slog.Logger
}

// NewTransportServices creates all transport layer services from the configuration.
// Recovery, request id and logging wrap every route; bearer extraction wraps
// only the MCP endpoint.
func NewTransportServices(cfg *Config) (Server, Router, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.ServerConfig == nil {
		return nil, nil, fmt.Errorf("server config cannot be nil")
	}
	if cfg.MetadataService == nil {
		return nil, nil, fmt.Errorf("metadata service cannot be nil")
	}
	if cfg.MCPHandler == nil {
		return nil, nil, fmt.Errorf("mcp handler cannot be nil")
	}
	toolCount := cfg.ToolCount
	if toolCount == nil {
		toolCount = func() int { return 0 }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	responder := NewErrorResponder(cfg.MetadataService.GetMetadataURL(), logger)

	router := NewRouter()
	router.Use(
		NewRecoveryMiddleware(responder, logger),
		NewRequestIDMiddleware(),
		NewLoggingMiddleware(logger),
	)

	metadata := NewMetadataHandler(cfg.MetadataService, responder, logger)
	router.Handle(RouteMetadata, metadata)
	router.Handle("HEAD /.well-known/oauth-protected-resource", metadata)

	health := NewHealthHandler(cfg.Version, toolCount)
	router.Handle(RouteHealth, health)
	router.Handle("HEAD /health", health)

	if cfg.Gatherer != nil {
		router.Handle(RouteMetrics, NewMetricsHandler(cfg.Gatherer, logger))
	}

	mcpHandler := NewMCPHandler(cfg.MCPHandler, responder, logger)
	router.Handle(RouteMCP, NewBearerMiddleware(logger)(mcpHandler))

	server := NewServer(cfg.ServerConfig, router, logger)

	return server, router, nil
}
