// Package metadata builds the OAuth 2.0 Protected Resource Metadata document
// (RFC 9728) that tells MCP clients which issuer mints tokens for the gateway.
package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/jamesprial/mcp-tool-gateway/pkg/oauth"
)

// WellKnownPath is where the metadata document is served.
const WellKnownPath = "/.well-known/oauth-protected-resource"

// ProtectedResourceMetadata is the RFC 9728 document.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	ResourceName           string   `json:"resource_name,omitempty"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
}

// Service serves a fixed metadata document.
type Service struct {
	doc         ProtectedResourceMetadata
	metadataURL string
}

// NewService creates a metadata service for the gateway at baseURL whose
// tokens are minted by issuer.
func NewService(baseURL, resourceName, issuer string) *Service {
	base := strings.TrimRight(baseURL, "/")
	return &Service{
		doc: ProtectedResourceMetadata{
			Resource:               base,
			ResourceName:           resourceName,
			AuthorizationServers:   []string{issuer},
			BearerMethodsSupported: []string{oauth.BearerMethodHeader},
		},
		metadataURL: base + WellKnownPath,
	}
}

// GetMetadata returns a copy of the metadata document.
func (s *Service) GetMetadata(ctx context.Context) (*ProtectedResourceMetadata, error) {
	doc := s.doc
	doc.AuthorizationServers = append([]string(nil), s.doc.AuthorizationServers...)
	doc.BearerMethodsSupported = append([]string(nil), s.doc.BearerMethodsSupported...)
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetMetadataURL returns the canonical URL where this metadata is served.
func (s *Service) GetMetadataURL() string {
	return s.metadataURL
}

// Validate checks the fields RFC 9728 marks as required.
func Validate(doc *ProtectedResourceMetadata) error {
	if doc.Resource == "" {
		return fmt.Errorf("resource field is required")
	}
	if len(doc.AuthorizationServers) == 0 {
		return fmt.Errorf("authorization_servers must contain at least one server")
	}
	for _, server := range doc.AuthorizationServers {
		if server == "" {
			return fmt.Errorf("authorization server URL cannot be empty")
		}
	}
	return nil
}
