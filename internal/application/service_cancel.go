package application

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/tradeforge/settlement/internal/domain"
)

// CancelOrder voids an order by spending its hash with no transfers. Only the
// offerer may cancel, presenting their own signature over the order; after a
// successful cancel the hash is terminally consumed and fulfillment is
// foreclosed. Expiry is not checked here; cancelling an already expired
// order is pointless but harmless.
func (s *Service) CancelOrder(ctx context.Context, caller common.Address, req CancelOrderRequest, idempotencyKey string) (SettlementResponse, error) {
	if caller == (common.Address{}) {
		return SettlementResponse{}, domain.ErrUnauthorized
	}
	if err := req.Order.Validate(); err != nil {
		return SettlementResponse{}, err
	}
	if len(req.Signature) == 0 {
		return SettlementResponse{}, fmt.Errorf("%w: signature is required", domain.ErrInvalidInput)
	}

	orderHash := s.OrderHash(req.Order)

	if caller != req.Order.Offerer {
		s.recordFailure(ctx, orderHash, caller, domain.OpCancel, "UNAUTHORIZED_CANCELLER")
		return SettlementResponse{}, domain.ErrUnauthorizedCanceller
	}

	if body, err := s.replayIdempotent(ctx, idempotencyKey, hashRequest(req)); err != nil {
		return SettlementResponse{}, err
	} else if body != nil {
		return decodeSettlementResponse(body)
	}

	if err := s.validateAndConsume(ctx, req.Order.Offerer, orderHash, req.Signature, nil, domain.ConsumeCancel); err != nil {
		s.recordFailure(ctx, orderHash, caller, domain.OpCancel, failureReason(err))
		return SettlementResponse{}, err
	}

	record := domain.SettlementRecord{
		RecordID:          uuid.New(),
		OrderHash:         orderHash,
		Kind:              domain.SettlementCancelled,
		Offerer:           req.Order.Offerer,
		OfferItem:         req.Order.OfferItem,
		ConsiderationItem: req.Order.ConsiderationItem,
		SettledAt:         s.nowFn(),
	}
	if err := s.settlements.RecordWithOutboxTx(ctx, record, settlementEvent(record)); err != nil {
		// No transfers happened; an unrecorded cancel reverts to an open order.
		_ = s.unwind(ctx, orderHash, nil)
		s.recordFailure(ctx, orderHash, caller, domain.OpCancel, "RECORD_PERSIST_FAILED")
		return SettlementResponse{}, fmt.Errorf("persist cancellation record: %w", err)
	}

	resp := toSettlementResponse(record)
	s.completeIdempotent(ctx, idempotencyKey, resp)
	return resp, nil
}
