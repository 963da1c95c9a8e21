package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth/autherr"
)

const (
	testIssuer   = "https://idp.example.com/realms/mcp"
	testAudience = "mcp-gateway"
	testKeyID    = "test-key-1"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	otherKey    *rsa.PrivateKey
)

func keys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		if testKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
		if otherKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
	})
	return testKey, otherKey
}

// mockKeySource implements KeySource for testing.
type mockKeySource struct {
	mu    sync.Mutex
	keys  map[string]any
	err   error
	calls int
}

func newMockKeySource() *mockKeySource {
	return &mockKeySource{keys: make(map[string]any)}
}

func (m *mockKeySource) Key(ctx context.Context, issuer, keyID string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	key, ok := m.keys[keyID]
	if !ok {
		return nil, autherr.NewKeyNotFoundError("Key", issuer, keyID)
	}
	return key, nil
}

func (m *mockKeySource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// createSignedToken creates a properly signed JWT token for testing.
func createSignedToken(t *testing.T, privateKey *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	tokenString, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return tokenString
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "alice",
		"iss":   testIssuer,
		"aud":   []string{testAudience, "account"},
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
		"jti":   "token-id-123",
		"scope": "openid profile",
		"realm_access": map[string]any{
			"roles": []string{"viewer", "offline_access"},
		},
		"roles": "operator viewer",
	}
}

func newTestVerifier(t *testing.T, skew time.Duration) (*Verifier, *mockKeySource) {
	t.Helper()
	priv, _ := keys(t)
	source := newMockKeySource()
	source.keys[testKeyID] = &priv.PublicKey
	v := NewVerifier(source, Config{
		Issuer:    testIssuer,
		Audience:  testAudience,
		ClockSkew: skew,
	})
	return v, source
}

func TestVerifier_Verify_Success(t *testing.T) {
	t.Parallel()

	priv, _ := keys(t)
	v, _ := newTestVerifier(t, time.Minute)

	claims, err := v.Verify(context.Background(), createSignedToken(t, priv, testKeyID, validClaims()))
	if err != nil {
		t.Fatalf("Verify() unexpected error: %v", err)
	}

	if claims.Subject != "alice" {
		t.Errorf("Subject = %q, want alice", claims.Subject)
	}
	if claims.Issuer != testIssuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, testIssuer)
	}
	wantRoles := []string{"offline_access", "operator", "viewer"}
	if !reflect.DeepEqual(claims.Roles, wantRoles) {
		t.Errorf("Roles = %v, want %v", claims.Roles, wantRoles)
	}
	if !reflect.DeepEqual(claims.Scopes, []string{"openid", "profile"}) {
		t.Errorf("Scopes = %v", claims.Scopes)
	}
	if claims.JTI != "token-id-123" {
		t.Errorf("JTI = %q", claims.JTI)
	}
	if claims.ExpiresAt.IsZero() {
		t.Error("ExpiresAt is zero")
	}
	if _, ok := claims.Raw["realm_access"]; !ok {
		t.Error("Raw missing realm_access")
	}
}

func TestVerifier_Verify_Rejections(t *testing.T) {
	t.Parallel()

	priv, other := keys(t)

	mutate := func(f func(jwt.MapClaims)) jwt.MapClaims {
		c := validClaims()
		f(c)
		return c
	}

	tests := []struct {
		name       string
		token      func(t *testing.T) string
		wantReason autherr.Reason
	}{
		{
			name:       "empty token",
			token:      func(t *testing.T) string { return "" },
			wantReason: autherr.ReasonMissingToken,
		},
		{
			name:       "whitespace token",
			token:      func(t *testing.T) string { return "   " },
			wantReason: autherr.ReasonMissingToken,
		},
		{
			name:       "malformed token",
			token:      func(t *testing.T) string { return "not.a.jwt" },
			wantReason: autherr.ReasonMissingToken,
		},
		{
			name: "signed by another key",
			token: func(t *testing.T) string {
				return createSignedToken(t, other, testKeyID, validClaims())
			},
			wantReason: autherr.ReasonInvalidSignature,
		},
		{
			name: "unknown kid",
			token: func(t *testing.T) string {
				return createSignedToken(t, priv, "rotated-away", validClaims())
			},
			wantReason: autherr.ReasonInvalidSignature,
		},
		{
			name: "symmetric algorithm",
			token: func(t *testing.T) string {
				tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
				tok.Header["kid"] = testKeyID
				s, err := tok.SignedString([]byte("shared-secret"))
				if err != nil {
					t.Fatalf("Failed to sign token: %v", err)
				}
				return s
			},
			wantReason: autherr.ReasonInvalidSignature,
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return createSignedToken(t, priv, testKeyID, mutate(func(c jwt.MapClaims) {
					c["exp"] = time.Now().Add(-time.Hour).Unix()
				}))
			},
			wantReason: autherr.ReasonExpired,
		},
		{
			name: "not yet valid",
			token: func(t *testing.T) string {
				return createSignedToken(t, priv, testKeyID, mutate(func(c jwt.MapClaims) {
					c["nbf"] = time.Now().Add(time.Hour).Unix()
				}))
			},
			wantReason: autherr.ReasonExpired,
		},
		{
			name: "missing exp",
			token: func(t *testing.T) string {
				return createSignedToken(t, priv, testKeyID, mutate(func(c jwt.MapClaims) {
					delete(c, "exp")
				}))
			},
			wantReason: autherr.ReasonMissingToken,
		},
		{
			name: "missing sub",
			token: func(t *testing.T) string {
				return createSignedToken(t, priv, testKeyID, mutate(func(c jwt.MapClaims) {
					delete(c, "sub")
				}))
			},
			wantReason: autherr.ReasonMissingToken,
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				return createSignedToken(t, priv, testKeyID, mutate(func(c jwt.MapClaims) {
					c["aud"] = "some-other-api"
				}))
			},
			wantReason: autherr.ReasonAudienceMismatch,
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				return createSignedToken(t, priv, testKeyID, mutate(func(c jwt.MapClaims) {
					c["iss"] = "https://evil.example.com"
				}))
			},
			wantReason: autherr.ReasonIssuerMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, _ := newTestVerifier(t, 0)

			claims, err := v.Verify(context.Background(), tt.token(t))
			if err == nil {
				t.Fatalf("Verify() = %+v, want error", claims)
			}
			reason, ok := autherr.ReasonOf(err)
			if !ok {
				t.Fatalf("Verify() error %v carries no reason", err)
			}
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q (err: %v)", reason, tt.wantReason, err)
			}
		})
	}
}

func TestVerifier_Verify_ForeignIssuerSkipsKeyLookup(t *testing.T) {
	t.Parallel()

	priv, _ := keys(t)
	v, source := newTestVerifier(t, 0)

	c := validClaims()
	c["iss"] = "https://evil.example.com"
	if _, err := v.Verify(context.Background(), createSignedToken(t, priv, testKeyID, c)); err == nil {
		t.Fatal("Verify() expected error")
	}
	if got := source.callCount(); got != 0 {
		t.Errorf("key lookups = %d, want 0", got)
	}
}

func TestVerifier_Verify_ClockSkew(t *testing.T) {
	t.Parallel()

	priv, _ := keys(t)
	v, _ := newTestVerifier(t, 2*time.Minute)

	c := validClaims()
	c["exp"] = time.Now().Add(-30 * time.Second).Unix()
	if _, err := v.Verify(context.Background(), createSignedToken(t, priv, testKeyID, c)); err != nil {
		t.Errorf("Verify() within skew unexpected error: %v", err)
	}
}

func TestVerifier_Verify_InjectedClock(t *testing.T) {
	t.Parallel()

	priv, _ := keys(t)
	source := newMockKeySource()
	source.keys[testKeyID] = &priv.PublicKey

	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := validClaims()
	c["iat"] = issued.Unix()
	c["exp"] = issued.Add(5 * time.Minute).Unix()
	tok := createSignedToken(t, priv, testKeyID, c)

	before := NewVerifier(source, Config{Issuer: testIssuer, Audience: testAudience,
		Now: func() time.Time { return issued.Add(time.Minute) }})
	if _, err := before.Verify(context.Background(), tok); err != nil {
		t.Errorf("Verify() before expiry unexpected error: %v", err)
	}

	after := NewVerifier(source, Config{Issuer: testIssuer, Audience: testAudience,
		Now: func() time.Time { return issued.Add(10 * time.Minute) }})
	_, err := after.Verify(context.Background(), tok)
	if !errors.Is(err, autherr.ErrExpired) {
		t.Errorf("Verify() after expiry error = %v, want ErrExpired", err)
	}
}

func TestVerifier_Verify_KeySetUnavailable(t *testing.T) {
	t.Parallel()

	priv, _ := keys(t)
	v, source := newTestVerifier(t, 0)
	source.err = autherr.NewKeySetUnavailableError("Key", testIssuer, context.DeadlineExceeded)

	_, err := v.Verify(context.Background(), createSignedToken(t, priv, testKeyID, validClaims()))
	if !errors.Is(err, autherr.ErrKeySetUnavailable) {
		t.Errorf("Verify() error = %v, want ErrKeySetUnavailable", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Verify() error = %v, want to wrap context.DeadlineExceeded", err)
	}
}

func TestExtractRoles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		claims jwt.MapClaims
		paths  []string
		want   []string
	}{
		{
			name:   "nested keycloak roles",
			claims: jwt.MapClaims{"realm_access": map[string]any{"roles": []any{"viewer", "admin"}}},
			paths:  []string{"realm_access.roles"},
			want:   []string{"admin", "viewer"},
		},
		{
			name:   "space separated string",
			claims: jwt.MapClaims{"roles": "a b  c"},
			paths:  []string{"roles"},
			want:   []string{"a", "b", "c"},
		},
		{
			name:   "merged and deduplicated",
			claims: jwt.MapClaims{"roles": []any{"viewer"}, "groups": []any{"viewer", "ops"}},
			paths:  []string{"roles", "groups"},
			want:   []string{"ops", "viewer"},
		},
		{
			name:   "missing path",
			claims: jwt.MapClaims{"sub": "x"},
			paths:  []string{"realm_access.roles"},
			want:   nil,
		},
		{
			name:   "non-object intermediate",
			claims: jwt.MapClaims{"realm_access": "oops"},
			paths:  []string{"realm_access.roles"},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extractRoles(tt.claims, tt.paths); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractRoles() = %v, want %v", got, tt.want)
			}
		})
	}
}
