package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/tradeforge/settlement/internal/domain"
)

// FulfillOrder settles a signed order directly: the offer item moves from the
// offerer to the caller and the consideration item from the caller to the
// offerer, with any resolved royalty deducted from whichever leg is fungible.
// The order hash is spent before anything moves; a failed leg rolls every
// executed transfer back and releases the hash again.
func (s *Service) FulfillOrder(ctx context.Context, caller common.Address, req FulfillOrderRequest, idempotencyKey string) (SettlementResponse, error) {
	if caller == (common.Address{}) {
		return SettlementResponse{}, domain.ErrUnauthorized
	}
	if req.Offerer != req.Order.Offerer {
		return SettlementResponse{}, fmt.Errorf("%w: offerer does not match order", domain.ErrInvalidInput)
	}
	if err := req.Order.Validate(); err != nil {
		return SettlementResponse{}, err
	}
	if len(req.Signature) == 0 {
		return SettlementResponse{}, fmt.Errorf("%w: signature is required", domain.ErrInvalidInput)
	}
	if err := validateExchangePair(req.Order.OfferItem, req.Order.ConsiderationItem); err != nil {
		return SettlementResponse{}, err
	}

	orderHash := s.OrderHash(req.Order)

	if req.Order.ExpiredAt(s.nowFn()) {
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfill, "ORDER_EXPIRED")
		return SettlementResponse{}, domain.ErrOrderExpired
	}

	if body, err := s.replayIdempotent(ctx, idempotencyKey, hashRequest(req)); err != nil {
		return SettlementResponse{}, err
	} else if body != nil {
		return decodeSettlementResponse(body)
	}

	if err := s.validateAndConsume(ctx, req.Order.Offerer, orderHash, req.Signature, nil, domain.ConsumeFulfill); err != nil {
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfill, failureReason(err))
		return SettlementResponse{}, err
	}

	royalty, err := s.resolveRoyalty(ctx, req.Order.OfferItem, req.Order.ConsiderationItem)
	if err != nil {
		_ = s.unwind(ctx, orderHash, nil)
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfill, failureReason(err))
		return SettlementResponse{}, err
	}

	// Royalty rides on the fungible leg; the other leg moves whole.
	offerRoyalty, considerationRoyalty := resolvedRoyalty{}, resolvedRoyalty{}
	if req.Order.OfferItem.Type == domain.ItemFungible {
		offerRoyalty = royalty
	} else {
		considerationRoyalty = royalty
	}

	comps := make([]compensation, 0, 3)
	offerComps, err := s.settleDirect(ctx, req.Order.Offerer, caller, req.Order.OfferItem, offerRoyalty)
	comps = append(comps, offerComps...)
	if err != nil {
		_ = s.unwind(ctx, orderHash, comps)
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfill, failureReason(err))
		return SettlementResponse{}, err
	}

	considerationComps, err := s.settleDirect(ctx, caller, req.Order.Offerer, req.Order.ConsiderationItem, considerationRoyalty)
	comps = append(comps, considerationComps...)
	if err != nil {
		_ = s.unwind(ctx, orderHash, comps)
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfill, failureReason(err))
		return SettlementResponse{}, err
	}

	record := domain.SettlementRecord{
		RecordID:          uuid.New(),
		OrderHash:         orderHash,
		Kind:              domain.SettlementFulfilled,
		Offerer:           req.Order.Offerer,
		Offeree:           caller,
		OfferItem:         req.Order.OfferItem,
		ConsiderationItem: req.Order.ConsiderationItem,
		RoyaltyReceiver:   royalty.Receiver,
		RoyaltyAmount:     royalty.Amount,
		SettledAt:         s.nowFn(),
	}
	if err := s.settlements.RecordWithOutboxTx(ctx, record, settlementEvent(record)); err != nil {
		_ = s.unwind(ctx, orderHash, comps)
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfill, "RECORD_PERSIST_FAILED")
		return SettlementResponse{}, fmt.Errorf("persist settlement record: %w", err)
	}

	resp := toSettlementResponse(record)
	s.completeIdempotent(ctx, idempotencyKey, resp)
	return resp, nil
}

func decodeSettlementResponse(body []byte) (SettlementResponse, error) {
	var resp SettlementResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SettlementResponse{}, fmt.Errorf("decode replayed response: %w", err)
	}
	return resp, nil
}
