package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrUnsupportedItemType is returned whenever an item variant reaches a
	// settlement path that has no transfer rule for it. Reserved variants
	// (Native, NonFungible) always fail hard rather than degrade.
	ErrUnsupportedItemType = errors.New("unsupported item type")
	// ErrInvalidSignature covers both a failed signature check and a signer
	// with no verification context. The two are deliberately indistinguishable
	// to callers.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrDeploymentIdentityMismatch is returned when deployment data does not
	// derive to the claimed signer identity. Nothing is materialized in that case.
	ErrDeploymentIdentityMismatch = errors.New("deployment identity mismatch")
	// ErrAlreadyConsumed is the replay guard: the order hash has been fulfilled
	// or cancelled before, and both outcomes are terminal.
	ErrAlreadyConsumed = errors.New("order already consumed")
	// ErrVoucherOrderMismatch is returned when the order's offer item does not
	// agree with the voucher being redeemed.
	ErrVoucherOrderMismatch = errors.New("voucher does not match order")
	// ErrVoucherRedeemNotSupported is returned for fungible offer items on the
	// voucher path, which has no mint rule for them.
	ErrVoucherRedeemNotSupported = errors.New("voucher redeem not supported for item")
	// ErrInsufficientBalance is mapped from ledger collaborators when a party
	// cannot cover a transfer leg.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnauthorizedCanceller enforces self-cancellation: only the offerer may
	// cancel their own order.
	ErrUnauthorizedCanceller = errors.New("canceller is not the offerer")
	// ErrOrderExpired is returned when an order's validity bound has passed.
	// Expired orders are rejected before any state is touched.
	ErrOrderExpired = errors.New("order expired")
	// ErrRoyaltyExceedsSalePrice bounds what a probed royalty policy can claim.
	ErrRoyaltyExceedsSalePrice = errors.New("royalty exceeds sale price")
	// ErrUnsupportedSignerTemplate is returned when deployment data names a
	// verification template this authority cannot materialize.
	ErrUnsupportedSignerTemplate = errors.New("unsupported signer template")
	ErrUnauthorized              = errors.New("unauthorized")
	ErrInvalidInput              = errors.New("invalid input")
	ErrConflict                  = errors.New("conflict")
	ErrIdempotencyConflict       = errors.New("idempotency conflict")
)
