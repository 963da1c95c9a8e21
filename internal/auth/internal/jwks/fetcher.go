package jwks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth/autherr"
)

// maxDocumentSize bounds metadata and key set response bodies.
const maxDocumentSize = 1 << 20

// discoveryPaths are tried in order when no key set URL is configured.
// OpenID Connect first (Keycloak publishes it per realm), then RFC 8414.
var discoveryPaths = []string{
	"/.well-known/openid-configuration",
	"/.well-known/oauth-authorization-server",
}

// ServerMetadata is the subset of issuer metadata needed for key discovery.
type ServerMetadata struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// Fetcher retrieves an issuer's signing key set over HTTP.
type Fetcher struct {
	httpClient *http.Client
	jwksURL    string
	logger     *slog.Logger

	mu           sync.RWMutex
	jwksURICache map[string]string // issuer -> discovered jwks_uri
}

// NewFetcher creates a Fetcher. When jwksURL is non-empty it is used for
// every issuer and discovery is skipped.
func NewFetcher(httpClient *http.Client, jwksURL string, logger *slog.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		httpClient:   httpClient,
		jwksURL:      jwksURL,
		logger:       logger,
		jwksURICache: make(map[string]string),
	}
}

// Fetch downloads and decodes the signing keys for issuer.
// Keys that are not usable for signature verification are dropped.
func (f *Fetcher) Fetch(ctx context.Context, issuer string) (*jose.JSONWebKeySet, error) {
	uri, err := f.resolveJWKSURI(ctx, issuer)
	if err != nil {
		return nil, err
	}
	return f.fetchKeySet(ctx, uri)
}

// resolveJWKSURI returns the configured key set URL or discovers it from the
// issuer's metadata documents.
func (f *Fetcher) resolveJWKSURI(ctx context.Context, issuer string) (string, error) {
	if f.jwksURL != "" {
		return f.jwksURL, nil
	}

	f.mu.RLock()
	cached, ok := f.jwksURICache[issuer]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	base := strings.TrimRight(issuer, "/")
	var lastErr error
	for _, path := range discoveryPaths {
		meta, err := f.fetchMetadata(ctx, base, base+path)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		f.mu.Lock()
		f.jwksURICache[issuer] = meta.JWKSURI
		f.mu.Unlock()
		return meta.JWKSURI, nil
	}
	return "", lastErr
}

// fetchMetadata loads one discovery document. The document must name the
// issuer it was fetched for (RFC 8414 section 3.3), trailing slash aside.
func (f *Fetcher) fetchMetadata(ctx context.Context, issuer, metadataURL string) (*ServerMetadata, error) {
	body, err := f.get(ctx, "fetchMetadata", metadataURL)
	if err != nil {
		return nil, err
	}

	var meta ServerMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, autherr.NewInvalidMetadataError("fetchMetadata", metadataURL, err)
	}
	if meta.JWKSURI == "" {
		return nil, autherr.NewInvalidMetadataError("fetchMetadata", metadataURL,
			fmt.Errorf("metadata missing jwks_uri field"))
	}
	if got := strings.TrimRight(meta.Issuer, "/"); got != issuer {
		return nil, autherr.NewInvalidMetadataError("fetchMetadata", metadataURL,
			fmt.Errorf("metadata issuer %q does not match %q", meta.Issuer, issuer))
	}
	return &meta, nil
}

func (f *Fetcher) fetchKeySet(ctx context.Context, uri string) (*jose.JSONWebKeySet, error) {
	body, err := f.get(ctx, "fetchKeySet", uri)
	if err != nil {
		return nil, err
	}

	// Decode keys one at a time so a single unsupported key (e.g. an
	// encryption-only entry) does not discard the whole set.
	var raw struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, autherr.NewJWKSFetchError("fetchKeySet", uri, err)
	}

	set := &jose.JSONWebKeySet{}
	for _, rawKey := range raw.Keys {
		var key jose.JSONWebKey
		if err := key.UnmarshalJSON(rawKey); err != nil {
			f.logger.Debug("skipping undecodable jwk", "url", uri, "error", err)
			continue
		}
		if key.Use != "" && key.Use != "sig" {
			continue
		}
		public := key.Public()
		if !public.Valid() {
			continue
		}
		set.Keys = append(set.Keys, public)
	}

	if len(set.Keys) == 0 {
		return nil, autherr.NewJWKSFetchError("fetchKeySet", uri, fmt.Errorf("key set contains no usable signing keys"))
	}
	return set, nil
}

func (f *Fetcher) get(ctx context.Context, op, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, autherr.NewJWKSFetchError(op, url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, autherr.NewJWKSFetchError(op, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, autherr.NewJWKSFetchError(op, url, fmt.Errorf("endpoint returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, autherr.NewJWKSFetchError(op, url, err)
	}
	return body, nil
}
