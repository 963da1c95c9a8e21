package auth

import "github.com/jamesprial/mcp-tool-gateway/internal/auth/autherr"

// Reason classifies why a token was rejected.
type Reason = autherr.Reason

// Token rejection reasons.
const (
	ReasonMissingToken      = autherr.ReasonMissingToken
	ReasonInvalidSignature  = autherr.ReasonInvalidSignature
	ReasonExpired           = autherr.ReasonExpired
	ReasonAudienceMismatch  = autherr.ReasonAudienceMismatch
	ReasonIssuerMismatch    = autherr.ReasonIssuerMismatch
	ReasonKeySetUnavailable = autherr.ReasonKeySetUnavailable
)

// Sentinel errors, one per Reason.
var (
	ErrMissingToken      = autherr.ErrMissingToken
	ErrInvalidSignature  = autherr.ErrInvalidSignature
	ErrExpired           = autherr.ErrExpired
	ErrAudienceMismatch  = autherr.ErrAudienceMismatch
	ErrIssuerMismatch    = autherr.ErrIssuerMismatch
	ErrKeySetUnavailable = autherr.ErrKeySetUnavailable
)

// ReasonOf reports the rejection reason carried by err.
func ReasonOf(err error) (Reason, bool) {
	return autherr.ReasonOf(err)
}
