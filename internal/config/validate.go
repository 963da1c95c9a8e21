package config

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

// JWKS cache TTL bounds.
const (
	MinJWKSCacheTTL = time.Minute
	MaxJWKSCacheTTL = time.Hour
)

// Validate checks that the configuration is valid and complete.
// It returns an error if required fields are missing or values are invalid.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateServer(cfg); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := validateAuth(cfg); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}

	if err := validatePolicy(cfg); err != nil {
		return fmt.Errorf("invalid policy config: %w", err)
	}

	if err := validateTools(cfg); err != nil {
		return fmt.Errorf("invalid tool config: %w", err)
	}

	return nil
}

// isLocalhost returns true if the host is localhost or a loopback address.
// It handles bare hostnames and host:port combinations.
func isLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// validateURL checks that raw is an absolute http(s) URL, allowing plain
// http only for loopback hosts.
func validateURL(name, raw string) error {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}

	if !parsedURL.IsAbs() || parsedURL.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", name)
	}

	if parsedURL.Scheme != "https" && parsedURL.Scheme != "http" {
		return fmt.Errorf("%s must use http or https scheme", name)
	}

	if parsedURL.Scheme == "http" && !isLocalhost(parsedURL.Host) {
		return fmt.Errorf("%s must use https scheme for non-localhost hosts", name)
	}

	return nil
}

// validateServer validates the server-related fields.
func validateServer(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("GATEWAY_ADDR is required")
	}

	if cfg.BaseURL == "" {
		return fmt.Errorf("GATEWAY_BASE_URL is required")
	}
	if err := validateURL("GATEWAY_BASE_URL", cfg.BaseURL); err != nil {
		return err
	}

	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("GATEWAY_READ_TIMEOUT must be positive")
	}

	if cfg.WriteTimeout <= 0 {
		return fmt.Errorf("GATEWAY_WRITE_TIMEOUT must be positive")
	}

	// Zero means no idle timeout.
	if cfg.IdleTimeout < 0 {
		return fmt.Errorf("GATEWAY_IDLE_TIMEOUT must be non-negative")
	}

	return nil
}

// validateAuth validates the token verification fields.
func validateAuth(cfg *Config) error {
	if cfg.Issuer == "" {
		return fmt.Errorf("AUTH_ISSUER is required")
	}
	if err := validateURL("AUTH_ISSUER", cfg.Issuer); err != nil {
		return err
	}

	// Keycloak audiences are client ids, so no URL format is imposed.
	if cfg.Audience == "" {
		return fmt.Errorf("AUTH_AUDIENCE is required")
	}

	if cfg.JWKSURL != "" {
		if err := validateURL("AUTH_JWKS_URL", cfg.JWKSURL); err != nil {
			return err
		}
	}

	if cfg.JWKSCacheTTL < MinJWKSCacheTTL || cfg.JWKSCacheTTL > MaxJWKSCacheTTL {
		return fmt.Errorf("AUTH_JWKS_CACHE_TTL must be between %v and %v", MinJWKSCacheTTL, MaxJWKSCacheTTL)
	}

	if cfg.JWKSFetchTimeout <= 0 {
		return fmt.Errorf("AUTH_JWKS_FETCH_TIMEOUT must be positive")
	}

	if cfg.ClockSkew < 0 {
		return fmt.Errorf("AUTH_CLOCK_SKEW must be non-negative")
	}

	if len(cfg.RolesClaims) == 0 {
		return fmt.Errorf("AUTH_ROLES_CLAIMS must name at least one claim")
	}

	return nil
}

// validatePolicy validates the authorization policy fields.
func validatePolicy(cfg *Config) error {
	if cfg.PolicyFile == "" {
		return fmt.Errorf("POLICY_FILE is required")
	}

	if cfg.PolicyReloadInterval < 0 {
		return fmt.Errorf("POLICY_RELOAD_INTERVAL must be non-negative")
	}

	return nil
}

// validateTools validates the tool execution fields.
func validateTools(cfg *Config) error {
	if cfg.ToolTimeout <= 0 {
		return fmt.Errorf("TOOL_TIMEOUT must be positive")
	}

	if cfg.MaxConcurrency < 1 {
		return fmt.Errorf("TOOL_MAX_CONCURRENCY must be at least 1")
	}

	if cfg.KubectlPath == "" {
		return fmt.Errorf("KUBECTL_PATH must not be empty")
	}

	return nil
}
