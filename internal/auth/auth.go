// Package auth verifies bearer tokens presented to the gateway.
//
// The package exposes small interfaces backed by adapters over the
// internal/jwks, internal/token and internal/metadata packages.
package auth

import (
	"context"
	"slices"
	"time"
)

// Verifier validates an access token and returns its verified claims.
// Failures carry a Reason recoverable with ReasonOf.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// KeySet manages the cached signing keys of the trusted issuer.
type KeySet interface {
	// Refresh fetches the issuer's key set now.
	Refresh(ctx context.Context) error
}

// MetadataService provides RFC 9728 protected resource metadata.
type MetadataService interface {
	GetMetadata(ctx context.Context) (*ProtectedResourceMetadata, error)
	GetMetadataURL() string
}

// Claims is the verified payload of a bearer token. Claims are created per
// request and never cached across requests.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	Roles     []string
	Scopes    []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	JTI       string
	Raw       map[string]any
}

// HasRole reports whether the caller holds role.
func (c *Claims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Roles, role)
}

// HasScope reports whether the token was granted scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Scopes, scope)
}

// ProtectedResourceMetadata is the RFC 9728 metadata document.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	ResourceName           string   `json:"resource_name,omitempty"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
}
