package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Order is a signed authorization to exchange OfferItem (given up by Offerer)
// for ConsiderationItem (received by Offerer). Its identity is the canonical
// typed hash; Salt makes otherwise identical orders distinct.
type Order struct {
	Offerer           common.Address
	OfferItem         Item
	ConsiderationItem Item
	Salt              *big.Int
	// Expiration is a unix-seconds validity bound. Zero means no bound.
	Expiration uint64
}

func (o Order) Validate() error {
	if o.Offerer == (common.Address{}) {
		return fmt.Errorf("%w: order requires an offerer", ErrInvalidInput)
	}
	if err := o.OfferItem.Validate(); err != nil {
		return fmt.Errorf("offer item: %w", err)
	}
	if err := o.ConsiderationItem.Validate(); err != nil {
		return fmt.Errorf("consideration item: %w", err)
	}
	if o.Salt == nil || o.Salt.Sign() < 0 {
		return fmt.Errorf("%w: order requires a non-negative salt", ErrInvalidInput)
	}
	return nil
}

// ExpiredAt reports whether the order's validity bound has passed at now.
func (o Order) ExpiredAt(now time.Time) bool {
	return o.Expiration != 0 && uint64(now.Unix()) > o.Expiration
}

// Voucher is a signed mint grant: the issuer authorizes Receiver to have
// TokenID minted in the stated Amount. The issuer validates the voucher
// signature itself at redemption time; this service only cross-checks the
// voucher against the order that resells it.
type Voucher struct {
	Receiver common.Address
	TokenID  *big.Int
	Amount   *big.Int
	Salt     *big.Int
}

func (v Voucher) Validate() error {
	if v.Receiver == (common.Address{}) {
		return fmt.Errorf("%w: voucher requires a receiver", ErrInvalidInput)
	}
	if v.TokenID == nil || v.TokenID.Sign() < 0 {
		return fmt.Errorf("%w: voucher requires a non-negative token id", ErrInvalidInput)
	}
	if v.Amount == nil || v.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: voucher requires a positive amount", ErrInvalidInput)
	}
	if v.Salt == nil || v.Salt.Sign() < 0 {
		return fmt.Errorf("%w: voucher requires a non-negative salt", ErrInvalidInput)
	}
	return nil
}

// MatchesOfferItem enforces the voucher/order agreement rule. SemiFungible
// offer items must match on token id and amount; Fungible items carry no token
// id, so agreement degenerates to amount with the voucher token id pinned to
// the zero sentinel. Other variants never match.
func (v Voucher) MatchesOfferItem(item Item) bool {
	switch item.Type {
	case ItemSemiFungible:
		return item.TokenIDOrZero().Cmp(v.TokenID) == 0 && item.AmountOrZero().Cmp(v.Amount) == 0
	case ItemFungible:
		return v.TokenID.Sign() == 0 && item.AmountOrZero().Cmp(v.Amount) == 0
	default:
		return false
	}
}

// Consumption kinds recorded in the authorization ledger.
const (
	ConsumeFulfill = "FULFILL"
	ConsumeCancel  = "CANCEL"
)

// Consumption marks an order hash as spent. Entries are written exactly once;
// the only removal path is compensation after a failed settlement.
type Consumption struct {
	OrderHash  common.Hash
	Kind       string
	ConsumedAt time.Time
}

// Settlement outcomes.
const (
	SettlementFulfilled = "FULFILLED"
	SettlementCancelled = "CANCELLED"
)

// Order status as reported by the status query. PENDING covers the window
// between consumption and the settlement record landing.
const (
	OrderStatusOpen      = "OPEN"
	OrderStatusPending   = "PENDING"
	OrderStatusFulfilled = "FULFILLED"
	OrderStatusCancelled = "CANCELLED"
)

// SettlementRecord is the append-only audit row emitted for every terminal
// order outcome. Cancellations carry a zero Offeree and zero royalty fields.
type SettlementRecord struct {
	RecordID          uuid.UUID
	OrderHash         common.Hash
	Kind              string
	Offerer           common.Address
	Offeree           common.Address
	OfferItem         Item
	ConsiderationItem Item
	RoyaltyReceiver   common.Address
	RoyaltyAmount     *big.Int
	SettledAt         time.Time
}

// SettlementAttempt records failed entry-point calls for audit. Successes are
// already covered by SettlementRecord, so only failures land here.
type SettlementAttempt struct {
	ID            int64
	OrderHash     common.Hash
	Caller        common.Address
	Operation     string
	Status        string
	FailureReason string
	AttemptAt     time.Time
}

// Operations recorded in SettlementAttempt.
const (
	OpFulfill            = "FULFILL_ORDER"
	OpCancel             = "CANCEL_ORDER"
	OpFulfillWithVoucher = "FULFILL_ORDER_WITH_VOUCHER"
)
