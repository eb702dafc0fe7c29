package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tradeforge/settlement/internal/domain"
	"github.com/tradeforge/settlement/internal/ports"
)

func testClaims() ports.CallerClaims {
	now := time.Now().UTC().Truncate(time.Second)
	return ports.CallerClaims{
		Account:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestEphemeralSignerRoundTrip(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralCallerSigner("")
	if err != nil {
		t.Fatalf("new ephemeral signer: %v", err)
	}

	claims := testClaims()
	token, err := signer.Sign(claims)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	verified, err := signer.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if verified.Account != claims.Account {
		t.Fatalf("account = %s, want %s", verified.Account.Hex(), claims.Account.Hex())
	}
	if verified.KeyID != "settlement-dev-key-1" {
		t.Fatalf("kid = %s, want the default dev key id", verified.KeyID)
	}
	if verified.ExpiresAt.Unix() != claims.ExpiresAt.Unix() {
		t.Fatalf("expires at %v, want %v", verified.ExpiresAt, claims.ExpiresAt)
	}
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralCallerSigner("")
	if err != nil {
		t.Fatalf("new ephemeral signer: %v", err)
	}

	claims := testClaims()
	claims.IssuedAt = time.Now().UTC().Add(-2 * time.Hour)
	claims.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	token, err := signer.Sign(claims)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := signer.ParseAndValidate(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestVerifierRequiresExpirationClaim(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralCallerSigner("")
	if err != nil {
		t.Fatalf("new ephemeral signer: %v", err)
	}

	// A token without exp must be rejected outright.
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, callerJWTClaims{
		Account: "0x1111111111111111111111111111111111111111",
	})
	raw, err := token.SignedString(signer.privateKey)
	if err != nil {
		t.Fatalf("sign bare token: %v", err)
	}

	if _, err := signer.ParseAndValidate(raw); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for missing exp, got %v", err)
	}
}

func TestVerifierRejectsMissingAccountClaim(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralCallerSigner("")
	if err != nil {
		t.Fatalf("new ephemeral signer: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, callerJWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := token.SignedString(signer.privateKey)
	if err != nil {
		t.Fatalf("sign accountless token: %v", err)
	}

	if _, err := signer.ParseAndValidate(raw); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for missing account, got %v", err)
	}
}

func TestVerifierRejectsWrongAlgorithm(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralCallerSigner("")
	if err != nil {
		t.Fatalf("new ephemeral signer: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, callerJWTClaims{
		Account: "0x1111111111111111111111111111111111111111",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign HS256 token: %v", err)
	}

	if _, err := signer.ParseAndValidate(raw); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for HS256 token, got %v", err)
	}
}

func TestVerifierRejectsTamperedToken(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralCallerSigner("")
	if err != nil {
		t.Fatalf("new ephemeral signer: %v", err)
	}

	token, err := signer.Sign(testClaims())
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	tampered := token[:len(token)-4] + "AAAA"

	if _, err := signer.ParseAndValidate(tampered); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for tampered token, got %v", err)
	}
}

func TestNewCallerTokenVerifierFromPEM(t *testing.T) {
	t.Parallel()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	verifier, err := NewCallerTokenVerifier(string(pemBytes))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, callerJWTClaims{
		Account: "0x1111111111111111111111111111111111111111",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	claims, err := verifier.ParseAndValidate(raw)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.Account != common.HexToAddress("0x1111111111111111111111111111111111111111") {
		t.Fatalf("unexpected account %s", claims.Account.Hex())
	}

	// A verifier keyed to someone else rejects the same token.
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate other key: %v", err)
	}
	otherDER, err := x509.MarshalPKIXPublicKey(&otherKey.PublicKey)
	if err != nil {
		t.Fatalf("marshal other key: %v", err)
	}
	otherVerifier, err := NewCallerTokenVerifier(string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: otherDER})))
	if err != nil {
		t.Fatalf("new other verifier: %v", err)
	}
	if _, err := otherVerifier.ParseAndValidate(raw); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized from mismatched key, got %v", err)
	}

	if _, err := NewCallerTokenVerifier(""); err == nil {
		t.Fatal("empty PEM must be rejected")
	}
}
