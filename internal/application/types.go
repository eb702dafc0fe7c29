package application

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/tradeforge/settlement/internal/domain"
)

type Config struct {
	// ChainID and Authority pin the typed-data domain. Signatures produced for
	// any other (chain, authority) pair never validate here.
	ChainID        *big.Int
	Authority      common.Address
	IdempotencyTTL time.Duration
}

// FulfillOrderRequest carries a signed order presented by the fulfilling
// party. Offerer is redundant with Order.Offerer on purpose: a mismatch means
// the caller assembled the request against a different order than it thinks.
type FulfillOrderRequest struct {
	Offerer   common.Address
	Order     domain.Order
	Signature []byte
}

type CancelOrderRequest struct {
	Order     domain.Order
	Signature []byte
}

// FulfillOrderWithVoucherRequest resells a voucher grant: the offerer (the
// voucher receiver) signed the order, possibly with a verification context
// that only exists counterfactually until this call materializes it.
type FulfillOrderWithVoucherRequest struct {
	Voucher          domain.Voucher
	VoucherSignature []byte
	Order            domain.Order
	OrderSignature   []byte
	// OffererDeployment, when present, describes the offerer's
	// verification context for on-demand materialization.
	OffererDeployment *domain.DeploymentData
}

type SettlementResponse struct {
	OrderHash       string    `json:"order_hash"`
	Status          string    `json:"status"`
	RecordID        uuid.UUID `json:"record_id"`
	RoyaltyReceiver string    `json:"royalty_receiver,omitempty"`
	RoyaltyAmount   string    `json:"royalty_amount,omitempty"`
	SettledAt       time.Time `json:"settled_at"`
}

type ItemView struct {
	Type    string `json:"type"`
	Asset   string `json:"asset,omitempty"`
	TokenID string `json:"token_id,omitempty"`
	Amount  string `json:"amount"`
}

type SettlementRecordView struct {
	RecordID          uuid.UUID `json:"record_id"`
	OrderHash         string    `json:"order_hash"`
	Kind              string    `json:"kind"`
	Offerer           string    `json:"offerer"`
	Offeree           string    `json:"offeree,omitempty"`
	OfferItem         ItemView  `json:"offer_item"`
	ConsiderationItem ItemView  `json:"consideration_item"`
	RoyaltyReceiver   string    `json:"royalty_receiver,omitempty"`
	RoyaltyAmount     string    `json:"royalty_amount,omitempty"`
	SettledAt         time.Time `json:"settled_at"`
}

type OrderStatusResponse struct {
	OrderHash  string                `json:"order_hash"`
	Status     string                `json:"status"`
	ConsumedAt *time.Time            `json:"consumed_at,omitempty"`
	Record     *SettlementRecordView `json:"record,omitempty"`
}

func toItemView(item domain.Item) ItemView {
	view := ItemView{
		Type:   item.Type.String(),
		Amount: item.AmountOrZero().String(),
	}
	if item.Asset != (common.Address{}) {
		view.Asset = item.Asset.Hex()
	}
	if item.TokenIDOrZero().Sign() != 0 || item.Type == domain.ItemSemiFungible || item.Type == domain.ItemNonFungible {
		view.TokenID = item.TokenIDOrZero().String()
	}
	return view
}

func toRecordView(record domain.SettlementRecord) SettlementRecordView {
	view := SettlementRecordView{
		RecordID:          record.RecordID,
		OrderHash:         record.OrderHash.Hex(),
		Kind:              record.Kind,
		Offerer:           record.Offerer.Hex(),
		OfferItem:         toItemView(record.OfferItem),
		ConsiderationItem: toItemView(record.ConsiderationItem),
		SettledAt:         record.SettledAt,
	}
	if record.Offeree != (common.Address{}) {
		view.Offeree = record.Offeree.Hex()
	}
	if record.RoyaltyReceiver != (common.Address{}) {
		view.RoyaltyReceiver = record.RoyaltyReceiver.Hex()
	}
	if record.RoyaltyAmount != nil && record.RoyaltyAmount.Sign() > 0 {
		view.RoyaltyAmount = record.RoyaltyAmount.String()
	}
	return view
}

func toSettlementResponse(record domain.SettlementRecord) SettlementResponse {
	resp := SettlementResponse{
		OrderHash: record.OrderHash.Hex(),
		Status:    record.Kind,
		RecordID:  record.RecordID,
		SettledAt: record.SettledAt,
	}
	if record.RoyaltyReceiver != (common.Address{}) {
		resp.RoyaltyReceiver = record.RoyaltyReceiver.Hex()
	}
	if record.RoyaltyAmount != nil && record.RoyaltyAmount.Sign() > 0 {
		resp.RoyaltyAmount = record.RoyaltyAmount.String()
	}
	return resp
}
