// Package config provides configuration management for the MCP tool gateway.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete gateway configuration in a flat structure.
type Config struct {
	// Server settings
	// Addr is the address to bind the HTTP server (e.g., ":8080").
	Addr string

	// BaseURL is the canonical base URL of the gateway (e.g., "https://gateway.example.com").
	// It is published as the resource in protected resource metadata.
	BaseURL string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum duration to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration

	// Auth settings
	// Issuer is the trusted token issuer. Tokens must carry it as iss.
	Issuer string

	// Audience is the audience (aud) every access token must contain.
	Audience string

	// JWKSURL is the issuer's key set URL. When empty it is discovered from
	// the issuer's metadata.
	JWKSURL string

	// JWKSCacheTTL is how long a fetched key set is trusted.
	JWKSCacheTTL time.Duration

	// JWKSFetchTimeout bounds a single key set fetch.
	JWKSFetchTimeout time.Duration

	// ClockSkew is the allowed clock skew for token expiration validation.
	ClockSkew time.Duration

	// RolesClaims lists dotted claim paths whose values are caller roles.
	RolesClaims []string

	// Policy settings
	// PolicyFile is the path of the YAML authorization policy.
	PolicyFile string

	// PolicyReloadInterval is the policy file poll interval. Zero disables hot reload.
	PolicyReloadInterval time.Duration

	// Tool settings
	// ToolTimeout bounds handlers whose tool does not set a timeout.
	ToolTimeout time.Duration

	// MaxConcurrency bounds tool handlers running at once.
	MaxConcurrency int

	// KubectlPath is the kubectl binary used by the cluster tools.
	KubectlPath string

	// Kubeconfig is passed to kubectl when set.
	Kubeconfig string

	// Observability settings
	// OTLPEndpoint enables OTLP/HTTP trace export when set.
	OTLPEndpoint string

	// LogLevel is the minimum slog level.
	LogLevel slog.Level
}

// Load reads configuration from environment variables and returns a Config.
// It sets default values for optional fields and validates the configuration.
func Load() (*Config, error) {
	cfg := &Config{
		// Server settings
		Addr:    getEnvWithDefault("GATEWAY_ADDR", ":8080"),
		BaseURL: os.Getenv("GATEWAY_BASE_URL"),

		// Auth settings
		Issuer:      strings.TrimSuffix(os.Getenv("AUTH_ISSUER"), "/"),
		Audience:    os.Getenv("AUTH_AUDIENCE"),
		JWKSURL:     os.Getenv("AUTH_JWKS_URL"),
		RolesClaims: parseCommaSeparated("AUTH_ROLES_CLAIMS"),

		// Policy settings
		PolicyFile: os.Getenv("POLICY_FILE"),

		// Tool settings
		KubectlPath: getEnvWithDefault("KUBECTL_PATH", "kubectl"),
		Kubeconfig:  os.Getenv("KUBECONFIG"),

		// Observability settings
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if cfg.RolesClaims == nil {
		cfg.RolesClaims = []string{"roles", "realm_access.roles"}
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"GATEWAY_READ_TIMEOUT", "30s", &cfg.ReadTimeout},
		{"GATEWAY_WRITE_TIMEOUT", "60s", &cfg.WriteTimeout},
		{"GATEWAY_IDLE_TIMEOUT", "120s", &cfg.IdleTimeout},
		{"AUTH_JWKS_CACHE_TTL", "5m", &cfg.JWKSCacheTTL},
		{"AUTH_JWKS_FETCH_TIMEOUT", "5s", &cfg.JWKSFetchTimeout},
		{"AUTH_CLOCK_SKEW", "30s", &cfg.ClockSkew},
		{"POLICY_RELOAD_INTERVAL", "10s", &cfg.PolicyReloadInterval},
		{"TOOL_TIMEOUT", "30s", &cfg.ToolTimeout},
	}
	for _, d := range durations {
		v, err := parseDurationWithDefault(d.key, d.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	maxConcurrency, err := parseIntWithDefault("TOOL_MAX_CONCURRENCY", 16)
	if err != nil {
		return nil, fmt.Errorf("invalid TOOL_MAX_CONCURRENCY: %w", err)
	}
	cfg.MaxConcurrency = maxConcurrency

	level, err := parseLogLevel(getEnvWithDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	// Validate configuration
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnvWithDefault returns the environment variable value or the default if not set.
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseCommaSeparated parses a comma-separated environment variable into a string slice.
// Empty values are filtered out. Returns nil if the environment variable is not set.
func parseCommaSeparated(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// parseDurationWithDefault parses a duration from an environment variable.
// If the variable is not set, it uses the default value.
// Returns an error if the value is set but cannot be parsed.
func parseDurationWithDefault(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		duration, err := time.ParseDuration(defaultValue)
		if err != nil {
			return 0, fmt.Errorf("invalid default duration %q: %w", defaultValue, err)
		}
		return duration, nil
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("cannot parse duration %q: %w", value, err)
	}

	return duration, nil
}

// parseIntWithDefault parses an integer from an environment variable.
func parseIntWithDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("cannot parse integer %q: %w", value, err)
	}
	return n, nil
}

func parseLogLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return 0, err
	}
	return level, nil
}

// String returns a string representation of the configuration (for debugging).
// Only non-sensitive values are printed; the kubeconfig path is redacted.
func (c *Config) String() string {
	kubeconfig := ""
	if c.Kubeconfig != "" {
		kubeconfig = "[set]"
	}
	return fmt.Sprintf("Config{Addr: %s, BaseURL: %s, ReadTimeout: %v, WriteTimeout: %v, IdleTimeout: %v, Issuer: %s, Audience: %s, JWKSURL: %s, JWKSCacheTTL: %v, JWKSFetchTimeout: %v, ClockSkew: %v, RolesClaims: %v, PolicyFile: %s, PolicyReloadInterval: %v, ToolTimeout: %v, MaxConcurrency: %d, KubectlPath: %s, Kubeconfig: %s, OTLPEndpoint: %s, LogLevel: %s}",
		c.Addr, c.BaseURL, c.ReadTimeout, c.WriteTimeout, c.IdleTimeout,
		c.Issuer, c.Audience, c.JWKSURL, c.JWKSCacheTTL, c.JWKSFetchTimeout, c.ClockSkew, c.RolesClaims,
		c.PolicyFile, c.PolicyReloadInterval, c.ToolTimeout, c.MaxConcurrency,
		c.KubectlPath, kubeconfig, c.OTLPEndpoint, c.LogLevel)
}
