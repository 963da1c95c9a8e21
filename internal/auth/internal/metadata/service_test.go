package metadata

import (
	"context"
	"testing"
)

func TestService_GetMetadata(t *testing.T) {
	t.Parallel()

	svc := NewService("https://gw.example.com/", "MCP Tool Gateway", "https://idp.example.com/realms/mcp")

	doc, err := svc.GetMetadata(context.Background())
	if err != nil {
		t.Fatalf("GetMetadata() unexpected error: %v", err)
	}
	if doc.Resource != "https://gw.example.com" {
		t.Errorf("Resource = %q, want trailing slash trimmed", doc.Resource)
	}
	if len(doc.AuthorizationServers) != 1 || doc.AuthorizationServers[0] != "https://idp.example.com/realms/mcp" {
		t.Errorf("AuthorizationServers = %v", doc.AuthorizationServers)
	}
	if got := svc.GetMetadataURL(); got != "https://gw.example.com/.well-known/oauth-protected-resource" {
		t.Errorf("GetMetadataURL() = %q", got)
	}

	// Returned document is a copy.
	doc.AuthorizationServers[0] = "mutated"
	again, _ := svc.GetMetadata(context.Background())
	if again.AuthorizationServers[0] == "mutated" {
		t.Error("GetMetadata() exposed internal state")
	}
}

func TestService_GetMetadata_MissingIssuer(t *testing.T) {
	t.Parallel()

	svc := NewService("https://gw.example.com", "", "")
	if _, err := svc.GetMetadata(context.Background()); err == nil {
		t.Error("GetMetadata() expected error for empty issuer")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     ProtectedResourceMetadata
		wantErr bool
	}{
		{name: "valid", doc: ProtectedResourceMetadata{Resource: "https://gw", AuthorizationServers: []string{"https://idp"}}},
		{name: "missing resource", doc: ProtectedResourceMetadata{AuthorizationServers: []string{"https://idp"}}, wantErr: true},
		{name: "no servers", doc: ProtectedResourceMetadata{Resource: "https://gw"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := Validate(&tt.doc); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
