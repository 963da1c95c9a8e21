package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth/internal/jwks"
	"github.com/jamesprial/mcp-tool-gateway/internal/auth/internal/metadata"
	"github.com/jamesprial/mcp-tool-gateway/internal/auth/internal/token"
)

// verifierAdapter adapts token.Verifier to the Verifier interface.
type verifierAdapter struct {
	verifier *token.Verifier
}

func (a *verifierAdapter) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := a.verifier.Verify(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	return &Claims{
		Subject:   claims.Subject,
		Issuer:    claims.Issuer,
		Audience:  claims.Audience,
		Roles:     claims.Roles,
		Scopes:    claims.Scopes,
		ExpiresAt: claims.ExpiresAt,
		IssuedAt:  claims.IssuedAt,
		JTI:       claims.JTI,
		Raw:       claims.Raw,
	}, nil
}

// keySetAdapter binds a jwks.Cache to the configured issuer.
type keySetAdapter struct {
	cache  *jwks.Cache
	issuer string
}

func (a *keySetAdapter) Refresh(ctx context.Context) error {
	return a.cache.Refresh(ctx, a.issuer)
}

// metadataServiceAdapter adapts metadata.Service to the MetadataService interface.
type metadataServiceAdapter struct {
	service *metadata.Service
}

func (a *metadataServiceAdapter) GetMetadata(ctx context.Context) (*ProtectedResourceMetadata, error) {
	meta, err := a.service.GetMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return &ProtectedResourceMetadata{
		Resource:               meta.Resource,
		ResourceName:           meta.ResourceName,
		AuthorizationServers:   meta.AuthorizationServers,
		BearerMethodsSupported: meta.BearerMethodsSupported,
	}, nil
}

func (a *metadataServiceAdapter) GetMetadataURL() string {
	return a.service.GetMetadataURL()
}

// Config holds the configuration needed to construct auth services.
type Config struct {
	// BaseURL is the canonical URL of the gateway.
	BaseURL string

	// ResourceName is the human readable name published in resource metadata.
	ResourceName string

	// Issuer is the trusted token issuer.
	Issuer string

	// Audience is the required aud value.
	Audience string

	// JWKSURL overrides key set discovery when set.
	JWKSURL string

	// JWKSCacheTTL bounds how long a fetched key set is trusted.
	JWKSCacheTTL time.Duration

	// JWKSFetchTimeout bounds each key set fetch.
	JWKSFetchTimeout time.Duration

	// ClockSkew is the leeway for time based claims.
	ClockSkew time.Duration

	// RolesClaims lists dotted claim paths holding roles.
	RolesClaims []string

	// HTTPClient is used for discovery and key set requests. Optional.
	HTTPClient *http.Client

	// Logger receives key cache warnings. Optional.
	Logger *slog.Logger

	// Now overrides the clock. Optional.
	Now func() time.Time
}

// newKeyCache creates the per-issuer key set cache backed by HTTP fetching.
func newKeyCache(cfg *Config) *jwks.Cache {
	fetcher := jwks.NewFetcher(cfg.HTTPClient, cfg.JWKSURL, cfg.Logger)
	return jwks.NewCache(fetcher, cfg.JWKSCacheTTL,
		jwks.WithFetchTimeout(cfg.JWKSFetchTimeout),
		jwks.WithClock(cfg.Now),
		jwks.WithLogger(cfg.Logger),
	)
}

// newVerifier creates a token verifier reading keys from the given cache.
func newVerifier(cfg *Config, cache *jwks.Cache) Verifier {
	v := token.NewVerifier(cache, token.Config{
		Issuer:      cfg.Issuer,
		Audience:    cfg.Audience,
		ClockSkew:   cfg.ClockSkew,
		RolesClaims: cfg.RolesClaims,
		Now:         cfg.Now,
	})
	return &verifierAdapter{verifier: v}
}

// NewMetadataService creates the RFC 9728 metadata service.
func NewMetadataService(cfg *Config) MetadataService {
	return &metadataServiceAdapter{
		service: metadata.NewService(cfg.BaseURL, cfg.ResourceName, cfg.Issuer),
	}
}

// NewAuthServices creates all auth services from the configuration.
// This is a convenience function for dependency injection.
func NewAuthServices(cfg *Config) (Verifier, KeySet, MetadataService) {
	if cfg == nil {
		panic("config cannot be nil")
	}
	cache := newKeyCache(cfg)
	return newVerifier(cfg, cache),
		&keySetAdapter{cache: cache, issuer: cfg.Issuer},
		NewMetadataService(cfg)
}
