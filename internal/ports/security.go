package ports

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CallerClaims is the verified identity of an API caller. Account is the
// settlement identity the platform bound to the bearer token; entry points
// treat it as the fulfiller/canceller identity.
type CallerClaims struct {
	Account   common.Address `json:"account"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	KeyID     string         `json:"kid"`
}

// TokenVerifier validates platform-issued bearer tokens. Signing lives with
// the platform; this service only verifies, except for the ephemeral dev
// signer used in local runs and tests.
type TokenVerifier interface {
	ParseAndValidate(token string) (CallerClaims, error)
}

// TokenSigner extends verification with issuance. Only the ephemeral dev
// implementation provides it in this service.
type TokenSigner interface {
	TokenVerifier
	Sign(claims CallerClaims) (string, error)
}
