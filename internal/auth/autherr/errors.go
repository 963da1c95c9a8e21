// Package autherr provides token verification error constructors.
// This package is separate from internal/auth to avoid import cycles
// when internal packages need to create auth errors.
package autherr

import (
	"errors"
	"fmt"

	ierrors "github.com/jamesprial/mcp-tool-gateway/internal/errors"
)

// Domain identifier for auth errors.
const domainAuth = "auth"

// Reason classifies why a token was rejected.
type Reason string

// Token rejection reasons.
const (
	ReasonMissingToken      Reason = "missing_token"
	ReasonInvalidSignature  Reason = "invalid_signature"
	ReasonExpired           Reason = "expired"
	ReasonAudienceMismatch  Reason = "audience_mismatch"
	ReasonIssuerMismatch    Reason = "issuer_mismatch"
	ReasonKeySetUnavailable Reason = "key_set_unavailable"
)

// Sentinel errors, one per Reason.
var (
	ErrMissingToken      = errors.New("missing or malformed token")
	ErrInvalidSignature  = errors.New("invalid token signature")
	ErrExpired           = errors.New("token expired")
	ErrAudienceMismatch  = errors.New("token audience mismatch")
	ErrIssuerMismatch    = errors.New("token issuer mismatch")
	ErrKeySetUnavailable = errors.New("signing key set unavailable")
)

var reasonSentinels = []struct {
	reason   Reason
	sentinel error
}{
	{ReasonMissingToken, ErrMissingToken},
	{ReasonInvalidSignature, ErrInvalidSignature},
	{ReasonExpired, ErrExpired},
	{ReasonAudienceMismatch, ErrAudienceMismatch},
	{ReasonIssuerMismatch, ErrIssuerMismatch},
	{ReasonKeySetUnavailable, ErrKeySetUnavailable},
}

// Message returns the caller-facing description of the reason. It never
// includes token contents or upstream error text.
func (r Reason) Message() string {
	switch r {
	case ReasonMissingToken:
		return "bearer token is missing or malformed"
	case ReasonInvalidSignature:
		return "token signature could not be verified"
	case ReasonExpired:
		return "token has expired"
	case ReasonAudienceMismatch:
		return "token audience is not accepted"
	case ReasonIssuerMismatch:
		return "token issuer is not trusted"
	case ReasonKeySetUnavailable:
		return "signing keys are unavailable"
	default:
		return "token rejected"
	}
}

// ReasonOf reports the rejection reason carried by err.
func ReasonOf(err error) (Reason, bool) {
	if err == nil {
		return "", false
	}
	for _, rs := range reasonSentinels {
		if errors.Is(err, rs.sentinel) {
			return rs.reason, true
		}
	}
	return "", false
}

func newAuthError(op string, reason Reason, sentinel, cause error) *ierrors.DomainError {
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return ierrors.New(domainAuth, op, ierrors.ErrUnauthorized, err).
		WithContext("oauth_error", ierrors.ErrorCodeInvalidToken).
		WithContext("reason", string(reason))
}

// NewMissingTokenError creates a DomainError for an empty or undecodable token.
func NewMissingTokenError(op string, cause error) *ierrors.DomainError {
	return newAuthError(op, ReasonMissingToken, ErrMissingToken, cause)
}

// NewInvalidSignatureError creates a DomainError for signature verification failure.
func NewInvalidSignatureError(op string, cause error) *ierrors.DomainError {
	return newAuthError(op, ReasonInvalidSignature, ErrInvalidSignature, cause)
}

// NewExpiredError creates a DomainError for a token outside its validity window.
func NewExpiredError(op string, cause error) *ierrors.DomainError {
	return newAuthError(op, ReasonExpired, ErrExpired, cause)
}

// NewAudienceMismatchError creates a DomainError for a token minted for another audience.
func NewAudienceMismatchError(op, expected string, cause error) *ierrors.DomainError {
	return newAuthError(op, ReasonAudienceMismatch, ErrAudienceMismatch, cause).
		WithContext("expected_audience", expected)
}

// NewIssuerMismatchError creates a DomainError for an untrusted issuer.
func NewIssuerMismatchError(op, expected, actual string) *ierrors.DomainError {
	return newAuthError(op, ReasonIssuerMismatch, ErrIssuerMismatch, nil).
		WithContext("expected_issuer", expected).
		WithContext("actual_issuer", actual)
}

// NewKeyNotFoundError creates a DomainError for a kid absent from the key set.
// An unknown key cannot verify the signature, so it reports InvalidSignature.
func NewKeyNotFoundError(op, issuer, keyID string) *ierrors.DomainError {
	return newAuthError(op, ReasonInvalidSignature, ErrInvalidSignature, fmt.Errorf("key %q not found", keyID)).
		WithContext("issuer", issuer).
		WithContext("key_id", keyID)
}

// NewKeySetUnavailableError creates a DomainError for a key set that could not
// be fetched and has no cached copy. The cause is kept so callers can detect
// context.DeadlineExceeded.
func NewKeySetUnavailableError(op, issuer string, cause error) *ierrors.DomainError {
	return newAuthError(op, ReasonKeySetUnavailable, ErrKeySetUnavailable, cause).
		WithContext("issuer", issuer)
}

// NewJWKSFetchError creates a DomainError for a failed key set or discovery request.
func NewJWKSFetchError(op, url string, err error) *ierrors.DomainError {
	return ierrors.New(domainAuth, op, ierrors.ErrInternal, fmt.Errorf("jwks fetch failed: %w", err)).
		WithContext("url", url)
}

// NewInvalidMetadataError creates a DomainError for unusable issuer metadata.
func NewInvalidMetadataError(op, url string, err error) *ierrors.DomainError {
	return ierrors.New(domainAuth, op, ierrors.ErrInternal, fmt.Errorf("invalid metadata: %w", err)).
		WithContext("url", url)
}
