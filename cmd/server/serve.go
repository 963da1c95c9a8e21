package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth"
	"github.com/jamesprial/mcp-tool-gateway/internal/config"
	"github.com/jamesprial/mcp-tool-gateway/internal/gateway"
	"github.com/jamesprial/mcp-tool-gateway/internal/mcp"
	"github.com/jamesprial/mcp-tool-gateway/internal/policy"
	"github.com/jamesprial/mcp-tool-gateway/internal/registry"
	"github.com/jamesprial/mcp-tool-gateway/internal/telemetry"
	"github.com/jamesprial/mcp-tool-gateway/internal/tools"
	"github.com/jamesprial/mcp-tool-gateway/internal/transport"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server configuration loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// Auth
	verifier, keySet, metadataService := auth.NewAuthServices(&auth.Config{
		BaseURL:          cfg.BaseURL,
		ResourceName:     serverName,
		Issuer:           cfg.Issuer,
		Audience:         cfg.Audience,
		JWKSURL:          cfg.JWKSURL,
		JWKSCacheTTL:     cfg.JWKSCacheTTL,
		JWKSFetchTimeout: cfg.JWKSFetchTimeout,
		ClockSkew:        cfg.ClockSkew,
		RolesClaims:      cfg.RolesClaims,
		Logger:           logger,
	})
	if err := keySet.Refresh(ctx); err != nil {
		// Not fatal: the cache retries on the first call.
		logger.Warn("initial key set fetch failed", slog.String("error", err.Error()))
	}

	// Tools
	reg := registry.New()
	kubectl := tools.NewKubectl(cfg.KubectlPath, cfg.Kubeconfig, tools.ExecRunner)
	for _, d := range tools.Builtins(kubectl) {
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("registering %s: %w", d.Name, err)
		}
	}
	reg.Seal()
	logger.Info("tool registry sealed", slog.Int("tools", reg.Len()))

	// Policy
	initial, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return err
	}
	store := policy.NewStore(initial)
	reloader := policy.NewReloader(store, cfg.PolicyFile, logger)

	var changes <-chan struct{}
	if cfg.PolicyReloadInterval > 0 {
		watcher := policy.NewWatcher(policy.WatcherConfig{
			Path:         cfg.PolicyFile,
			PollInterval: cfg.PolicyReloadInterval,
		})
		watcher.Start(ctx)
		defer watcher.Stop()
		changes = watcher.Changes()
	}
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go reloader.Run(ctx, changes, hup)

	// Telemetry
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sink := telemetry.Multi(
		telemetry.NewPrometheusSink(promRegistry),
		telemetry.NewLogSink(logger),
	)

	// Dispatch and protocol
	dispatcher := gateway.NewDispatcher(verifier, reg, store, sink, gateway.Config{
		DefaultTimeout: cfg.ToolTimeout,
		MaxConcurrency: cfg.MaxConcurrency,
		Logger:         logger,
	})
	mcpHandler := mcp.NewHandler(&mcp.Config{
		ServerName:    serverName,
		ServerVersion: version,
		Logger:        logger,
	}, dispatcher, reg, store, verifier)

	// Transport
	server, _, err := transport.NewTransportServices(&transport.Config{
		ServerConfig:    cfg,
		MetadataService: metadataService,
		MCPHandler:      mcpHandler,
		ToolCount:       reg.Len,
		Gatherer:        promRegistry,
		Version:         version,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("creating transport services: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining requests")
	case err := <-serverErrCh:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, transport.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
