package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/tradeforge/settlement/internal/domain"
)

// FulfillOrderWithVoucher settles an order whose offer item does not exist yet:
// the offerer holds a signed mint grant from the issuer and resells it, so the
// item is minted directly to the caller at settlement time. The offerer's
// verification context may itself be counterfactual; deployment data in the
// request materializes it on the fly after an identity check.
//
// The consideration leg runs before the mint: a mint cannot be compensated,
// so it must be the last thing that can fail.
func (s *Service) FulfillOrderWithVoucher(ctx context.Context, caller common.Address, req FulfillOrderWithVoucherRequest, idempotencyKey string) (SettlementResponse, error) {
	if caller == (common.Address{}) {
		return SettlementResponse{}, domain.ErrUnauthorized
	}
	if err := req.Voucher.Validate(); err != nil {
		return SettlementResponse{}, err
	}
	if err := req.Order.Validate(); err != nil {
		return SettlementResponse{}, err
	}
	if len(req.OrderSignature) == 0 || len(req.VoucherSignature) == 0 {
		return SettlementResponse{}, fmt.Errorf("%w: order and voucher signatures are required", domain.ErrInvalidInput)
	}
	if req.Order.Offerer != req.Voucher.Receiver {
		return SettlementResponse{}, fmt.Errorf("%w: order offerer is not the voucher receiver", domain.ErrVoucherOrderMismatch)
	}
	if err := validateExchangePair(req.Order.OfferItem, req.Order.ConsiderationItem); err != nil {
		return SettlementResponse{}, err
	}

	orderHash := s.OrderHash(req.Order)

	if req.Order.ExpiredAt(s.nowFn()) {
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfillWithVoucher, "ORDER_EXPIRED")
		return SettlementResponse{}, domain.ErrOrderExpired
	}

	// The offer item must be voucher-mintable before anything is spent.
	// Fungible offers pass the cross-check below on amount alone but have no
	// mint rule, so they are rejected here with the distinct error.
	switch req.Order.OfferItem.Type {
	case domain.ItemSemiFungible:
	case domain.ItemFungible:
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfillWithVoucher, "VOUCHER_REDEEM_NOT_SUPPORTED")
		return SettlementResponse{}, fmt.Errorf("%w: fungible items cannot be voucher-minted", domain.ErrVoucherRedeemNotSupported)
	default:
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfillWithVoucher, "UNSUPPORTED_ITEM_TYPE")
		return SettlementResponse{}, fmt.Errorf("%w: %s has no voucher mint rule", domain.ErrUnsupportedItemType, req.Order.OfferItem.Type)
	}

	if !req.Voucher.MatchesOfferItem(req.Order.OfferItem) {
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfillWithVoucher, "VOUCHER_ORDER_MISMATCH")
		return SettlementResponse{}, domain.ErrVoucherOrderMismatch
	}

	if body, err := s.replayIdempotent(ctx, idempotencyKey, hashRequest(req)); err != nil {
		return SettlementResponse{}, err
	} else if body != nil {
		return decodeSettlementResponse(body)
	}

	if err := s.validateAndConsume(ctx, req.Order.Offerer, orderHash, req.OrderSignature, req.OffererDeployment, domain.ConsumeFulfill); err != nil {
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfillWithVoucher, failureReason(err))
		return SettlementResponse{}, err
	}

	royalty, err := s.resolveRoyalty(ctx, req.Order.OfferItem, req.Order.ConsiderationItem)
	if err != nil {
		_ = s.unwind(ctx, orderHash, nil)
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfillWithVoucher, failureReason(err))
		return SettlementResponse{}, err
	}

	comps, err := s.settleDirect(ctx, caller, req.Order.Offerer, req.Order.ConsiderationItem, royalty)
	if err != nil {
		_ = s.unwind(ctx, orderHash, comps)
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfillWithVoucher, failureReason(err))
		return SettlementResponse{}, err
	}

	if err := s.settleWithVoucher(ctx, caller, req.Order.OfferItem, req.Voucher, req.VoucherSignature); err != nil {
		_ = s.unwind(ctx, orderHash, comps)
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfillWithVoucher, failureReason(err))
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
		// The mint is irreversible, so there is nothing safe to roll back
		// anymore. Assets have moved; the hash stays consumed and the missing
		// record is an operator problem, not a retryable one.
		slog.Default().ErrorContext(ctx, "settlement executed but record persist failed",
			"service", "Settlement-Service",
			"module", "application",
			"layer", "application",
			"operation", "fulfill_order_with_voucher",
			"outcome", "failure",
			"order_hash", orderHash.Hex(),
			"error", err,
		)
		s.recordFailure(ctx, orderHash, caller, domain.OpFulfillWithVoucher, "RECORD_PERSIST_FAILED")
		return SettlementResponse{}, fmt.Errorf("persist settlement record: %w", err)
	}

	resp := toSettlementResponse(record)
	s.completeIdempotent(ctx, idempotencyKey, resp)
	return resp, nil
}
