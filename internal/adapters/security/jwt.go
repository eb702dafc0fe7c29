package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tradeforge/settlement/internal/domain"
	"github.com/tradeforge/settlement/internal/ports"
)

// CallerTokenVerifier validates RS256 bearer tokens minted by the platform
// identity service. This service never signs production tokens; it only
// checks them against the platform's published public key.
type CallerTokenVerifier struct {
	publicKey *rsa.PublicKey
}

// NewCallerTokenVerifier builds a verifier from the platform's public key PEM.
func NewCallerTokenVerifier(publicKeyPEM string) (*CallerTokenVerifier, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("auth token public key is required")
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &CallerTokenVerifier{publicKey: pub}, nil
}

type callerJWTClaims struct {
	Account string `json:"account"`
	jwt.RegisteredClaims
}

func (v *CallerTokenVerifier) ParseAndValidate(raw string) (ports.CallerClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &callerJWTClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return ports.CallerClaims{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*callerJWTClaims)
	if !ok || !parsed.Valid {
		return ports.CallerClaims{}, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthorized)
	}
	if !common.IsHexAddress(claims.Account) {
		return ports.CallerClaims{}, fmt.Errorf("%w: token carries no settlement account", domain.ErrUnauthorized)
	}

	kid, _ := parsed.Header["kid"].(string)

	out := ports.CallerClaims{
		Account: common.HexToAddress(claims.Account),
		KeyID:   kid,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return out, nil
}

// EphemeralCallerSigner mints and verifies tokens with an in-memory keypair.
// It exists to unblock local runs and tests when no platform public key is
// configured; tokens it issues are worthless anywhere else.
type EphemeralCallerSigner struct {
	kid        string
	privateKey *rsa.PrivateKey
	verifier   *CallerTokenVerifier
}

func NewEphemeralCallerSigner(kid string) (*EphemeralCallerSigner, error) {
	if kid == "" {
		kid = "settlement-dev-key-1"
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &EphemeralCallerSigner{
		kid:        kid,
		privateKey: privateKey,
		verifier:   &CallerTokenVerifier{publicKey: &privateKey.PublicKey},
	}, nil
}

func (s *EphemeralCallerSigner) Sign(claims ports.CallerClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, callerJWTClaims{
		Account: claims.Account.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	token.Header["kid"] = s.kid
	return token.SignedString(s.privateKey)
}

func (s *EphemeralCallerSigner) ParseAndValidate(raw string) (ports.CallerClaims, error) {
	return s.verifier.ParseAndValidate(raw)
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
