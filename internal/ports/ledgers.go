package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tradeforge/settlement/internal/domain"
)

// CapabilityID is a four-byte capability selector, probed before any optional
// interface is exercised.
type CapabilityID [4]byte

// RoyaltyCapability marks assets whose registry can answer royalty queries.
var RoyaltyCapability = CapabilityID{0x2a, 0x55, 0x20, 0x5a}

func (c CapabilityID) String() string {
	return common.Bytes2Hex(c[:])
}

// FungibleLedger moves amount-denominated assets between parties. The ledger
// owns balance book-keeping; this service only authorizes movements.
// Implementations map a declined transfer to domain.ErrInsufficientBalance.
type FungibleLedger interface {
	TransferFrom(ctx context.Context, asset, from, to common.Address, amount *big.Int) error
}

// SemiFungibleLedger moves token-id-scoped balances between parties.
type SemiFungibleLedger interface {
	SafeTransferFrom(ctx context.Context, asset, from, to common.Address, tokenID, amount *big.Int, data []byte) error
}

// CapabilityProber answers whether an asset advertises a capability. A probe
// failure is an error, not a "no": degrading to zero royalty is a decision the
// resolver makes only on an authoritative negative answer.
type CapabilityProber interface {
	Supports(ctx context.Context, asset common.Address, capability CapabilityID) (bool, error)
}

// RoyaltyPolicy answers royalty queries for assets that advertise
// RoyaltyCapability. The returned amount is denominated in the sale price's
// asset and must not exceed the sale price.
type RoyaltyPolicy interface {
	RoyaltyInfo(ctx context.Context, asset common.Address, tokenID, salePrice *big.Int) (common.Address, *big.Int, error)
}

// VoucherIssuer redeems a signed mint grant directly to a receiver. The issuer
// re-validates the voucher signature and enforces its own single-use rules;
// this service forwards the signature opaquely.
type VoucherIssuer interface {
	RedeemVoucherTo(ctx context.Context, asset, to common.Address, voucher domain.Voucher, signature []byte) error
}

// SignerRegistry owns signer verification contexts, including counterfactual
// ones. EnsureDeployed materializes the context described by the deployment
// data and returns the identity it derived; materialization is idempotent and
// never yields a different identity for the same inputs.
type SignerRegistry interface {
	Exists(ctx context.Context, signer common.Address) (bool, error)
	EnsureDeployed(ctx context.Context, deployment domain.DeploymentData) (common.Address, error)
	// IsValidSignature checks digest against the signer's verification context.
	// A signer without a context is an error, not a false.
	IsValidSignature(ctx context.Context, signer common.Address, digest common.Hash, signature []byte) (bool, error)
}
