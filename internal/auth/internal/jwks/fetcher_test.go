package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	ierrors "github.com/jamesprial/mcp-tool-gateway/internal/errors"
)

// newIssuerServer serves discovery metadata and a key set. Paths listed in
// missing return 404.
func newIssuerServer(t *testing.T, keySetJSON []byte, missing ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	metadataHits := &atomic.Int32{}
	skip := make(map[string]bool)
	for _, p := range missing {
		skip[p] = true
	}

	var srv *httptest.Server
	mux := http.NewServeMux()
	for _, p := range discoveryPaths {
		path := p
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			metadataHits.Add(1)
			if skip[path] {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(ServerMetadata{Issuer: srv.URL, JWKSURI: srv.URL + "/certs"})
		})
	}
	mux.HandleFunc("/certs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(keySetJSON)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, metadataHits
}

func marshalKeySet(t *testing.T, kids ...string) []byte {
	t.Helper()
	set, _ := newTestKeySet(t, kids...)
	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("Failed to marshal key set: %v", err)
	}
	return data
}

func TestFetcher_Fetch_OpenIDDiscovery(t *testing.T) {
	t.Parallel()

	srv, hits := newIssuerServer(t, marshalKeySet(t, "k1", "k2"))
	fetcher := NewFetcher(srv.Client(), "", nil)

	set, err := fetcher.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if len(set.Keys) != 2 {
		t.Errorf("Fetch() keys = %d, want 2", len(set.Keys))
	}

	// Discovered URI is cached per issuer.
	if _, err := fetcher.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("metadata hits = %d, want 1", got)
	}
}

func TestFetcher_Fetch_FallsBackToAuthorizationServerMetadata(t *testing.T) {
	t.Parallel()

	srv, hits := newIssuerServer(t, marshalKeySet(t, "k1"), "/.well-known/openid-configuration")
	fetcher := NewFetcher(srv.Client(), "", nil)

	set, err := fetcher.Fetch(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if len(set.Keys) != 1 {
		t.Errorf("Fetch() keys = %d, want 1", len(set.Keys))
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("metadata hits = %d, want 2", got)
	}
}

func TestFetcher_Fetch_ConfiguredURLSkipsDiscovery(t *testing.T) {
	t.Parallel()

	srv, hits := newIssuerServer(t, marshalKeySet(t, "k1"))
	fetcher := NewFetcher(srv.Client(), srv.URL+"/certs", nil)

	if _, err := fetcher.Fetch(context.Background(), "https://unrelated.example.com"); err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if got := hits.Load(); got != 0 {
		t.Errorf("metadata hits = %d, want 0", got)
	}
}

func TestFetcher_Fetch_SkipsUnusableKeys(t *testing.T) {
	t.Parallel()

	set, _ := newTestKeySet(t, "sig-key")
	good, err := json.Marshal(set.Keys[0])
	if err != nil {
		t.Fatalf("Failed to marshal key: %v", err)
	}
	encSet, _ := newTestKeySet(t, "enc-key")
	encSet.Keys[0].Use = "enc"
	enc, err := json.Marshal(encSet.Keys[0])
	if err != nil {
		t.Fatalf("Failed to marshal key: %v", err)
	}

	body := []byte(`{"keys":[` + string(good) + `,` + string(enc) + `,{"kty":"bogus","kid":"junk"}]}`)
	srv, _ := newIssuerServer(t, body)
	fetcher := NewFetcher(srv.Client(), srv.URL+"/certs", nil)

	got, err := fetcher.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if len(got.Keys) != 1 || got.Keys[0].KeyID != "sig-key" {
		t.Errorf("Fetch() keys = %+v, want only sig-key", got.Keys)
	}
}

func TestFetcher_Fetch_Errors(t *testing.T) {
	t.Parallel()

	keySet := marshalKeySet(t, "k1")
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		discover bool
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
		{
			name: "no usable keys",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"keys":[]}`))
			},
		},
		{
			name:     "metadata names another issuer",
			discover: true,
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/certs" {
					_, _ = w.Write(keySet)
					return
				}
				_ = json.NewEncoder(w).Encode(ServerMetadata{
					Issuer:  "https://evil.example",
					JWKSURI: "http://" + r.Host + "/certs",
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			jwksURL, issuer := srv.URL, "https://idp.example.com"
			if tt.discover {
				jwksURL, issuer = "", srv.URL
			}
			fetcher := NewFetcher(srv.Client(), jwksURL, nil)
			_, err := fetcher.Fetch(context.Background(), issuer)
			if err == nil {
				t.Fatal("Fetch() expected error")
			}
			if !errors.Is(err, ierrors.ErrInternal) {
				t.Errorf("Fetch() error = %v, want ErrInternal kind", err)
			}
		})
	}
}

func TestFetcher_Fetch_IssuerTrailingSlash(t *testing.T) {
	t.Parallel()

	keySet := marshalKeySet(t, "k1")
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/certs" {
			_, _ = w.Write(keySet)
			return
		}
		_ = json.NewEncoder(w).Encode(ServerMetadata{Issuer: srv.URL + "/", JWKSURI: srv.URL + "/certs"})
	}))
	defer srv.Close()

	set, err := NewFetcher(srv.Client(), "", nil).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(set.Keys) != 1 {
		t.Errorf("len(Keys) = %d, want 1", len(set.Keys))
	}
}

func TestFetcher_Fetch_MetadataMissingJWKSURI(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"issuer":"x"}`))
	}))
	defer srv.Close()

	fetcher := NewFetcher(srv.Client(), "", nil)
	if _, err := fetcher.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("Fetch() expected error for metadata without jwks_uri")
	}
}

func TestFetcher_Fetch_RespectsDeadline(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	fetcher := NewFetcher(srv.Client(), srv.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := fetcher.Fetch(ctx, "https://idp.example.com")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fetch() error = %v, want context.DeadlineExceeded", err)
	}
}
