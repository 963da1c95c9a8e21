// Package token verifies bearer JWTs and extracts gateway claims.
package token

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth/autherr"
	ierrors "github.com/jamesprial/mcp-tool-gateway/internal/errors"
)

// KeySource resolves verification keys.
// This avoids importing the parent auth package.
type KeySource interface {
	Key(ctx context.Context, issuer, keyID string) (any, error)
}

// Claims represents the verified payload of an access token.
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

// Whitelisted signing algorithms. Symmetric and "none" algorithms are
// rejected before any key lookup happens.
var allowedAlgorithms = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
}

// DefaultRolesClaims are the claim paths searched for roles when none are configured.
var DefaultRolesClaims = []string{"roles", "realm_access.roles"}

// Config configures a Verifier.
type Config struct {
	// Issuer is the only trusted iss value.
	Issuer string

	// Audience must appear in the token's aud claim.
	Audience string

	// ClockSkew is the leeway applied to exp, nbf and iat.
	ClockSkew time.Duration

	// RolesClaims are dotted claim paths whose values are merged into Claims.Roles.
	RolesClaims []string

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Verifier validates access tokens against an issuer's key set.
type Verifier struct {
	keys        KeySource
	issuer      string
	audience    string
	rolesClaims []string
	parser      *jwt.Parser
}

// NewVerifier creates a new token verifier.
func NewVerifier(keys KeySource, cfg Config) *Verifier {
	if keys == nil {
		panic("keys cannot be nil")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	rolesClaims := cfg.RolesClaims
	if len(rolesClaims) == 0 {
		rolesClaims = DefaultRolesClaims
	}

	return &Verifier{
		keys:        keys,
		issuer:      cfg.Issuer,
		audience:    cfg.Audience,
		rolesClaims: rolesClaims,
		parser: jwt.NewParser(
			jwt.WithValidMethods(allowedAlgorithms),
			jwt.WithLeeway(cfg.ClockSkew),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
		),
	}
}

// Verify checks signature, issuer, audience and expiry and returns the claims.
// Every failure is a DomainError carrying an autherr reason.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	const op = "Verify"

	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, autherr.NewMissingTokenError(op, nil)
	}

	mapClaims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, mapClaims, func(t *jwt.Token) (any, error) {
		return v.keyFor(ctx, t)
	})
	if err != nil {
		return nil, v.classify(op, err)
	}
	if !token.Valid {
		return nil, autherr.NewInvalidSignatureError(op, fmt.Errorf("token is invalid"))
	}

	return v.extractClaims(op, mapClaims)
}

// keyFor rejects foreign issuers before any key fetch, then resolves the
// signing key by kid.
func (v *Verifier) keyFor(ctx context.Context, t *jwt.Token) (any, error) {
	iss, err := t.Claims.GetIssuer()
	if err != nil || iss != v.issuer {
		return nil, autherr.NewIssuerMismatchError("keyFor", v.issuer, iss)
	}

	kid, _ := t.Header["kid"].(string)
	return v.keys.Key(ctx, v.issuer, kid)
}

// classify maps parser errors onto rejection reasons. Errors that already
// carry a reason (from keyFor) pass through unchanged.
func (v *Verifier) classify(op string, err error) error {
	if _, ok := autherr.ReasonOf(err); ok {
		var de *ierrors.DomainError
		if errors.As(err, &de) {
			return de
		}
		return err
	}

	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return autherr.NewMissingTokenError(op, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return autherr.NewIssuerMismatchError(op, v.issuer, "")
	case errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return autherr.NewExpiredError(op, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return autherr.NewAudienceMismatchError(op, v.audience, err)
	default:
		return autherr.NewInvalidSignatureError(op, err)
	}
}

// extractClaims builds Claims from verified JWT MapClaims.
func (v *Verifier) extractClaims(op string, mapClaims jwt.MapClaims) (*Claims, error) {
	claims := &Claims{Raw: make(map[string]any, len(mapClaims))}
	for k, val := range mapClaims {
		claims.Raw[k] = val
	}

	sub, err := mapClaims.GetSubject()
	if err != nil || sub == "" {
		return nil, autherr.NewMissingTokenError(op, fmt.Errorf("missing claim: sub"))
	}
	claims.Subject = sub

	// iss, aud and exp were enforced by the parser.
	claims.Issuer, _ = mapClaims.GetIssuer()
	claims.Audience, _ = mapClaims.GetAudience()
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if jti, ok := mapClaims["jti"].(string); ok {
		claims.JTI = jti
	}
	if scope, ok := mapClaims["scope"].(string); ok {
		claims.Scopes = splitFields(scope)
	}

	claims.Roles = extractRoles(mapClaims, v.rolesClaims)
	return claims, nil
}

// extractRoles merges the values found at each dotted path into a sorted,
// de-duplicated slice. Values may be string arrays or space separated strings.
func extractRoles(mapClaims jwt.MapClaims, paths []string) []string {
	seen := make(map[string]struct{})
	for _, path := range paths {
		for _, role := range stringsAt(map[string]any(mapClaims), strings.Split(path, ".")) {
			seen[role] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	roles := make([]string, 0, len(seen))
	for role := range seen {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

func stringsAt(node map[string]any, path []string) []string {
	if len(path) == 0 {
		return nil
	}
	value, ok := node[path[0]]
	if !ok {
		return nil
	}
	if len(path) > 1 {
		child, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		return stringsAt(child, path[1:])
	}

	switch typed := value.(type) {
	case string:
		return splitFields(typed)
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// splitFields parses a space-separated claim value into a slice.
func splitFields(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
