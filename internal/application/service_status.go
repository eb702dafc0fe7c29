package application

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tradeforge/settlement/internal/domain"
)

// OrderStatus reports where an order hash is in its lifecycle. Unseen hashes
// are OPEN; a consumption without a settlement record means a settlement is in
// flight right now.
func (s *Service) OrderStatus(ctx context.Context, orderHash common.Hash) (OrderStatusResponse, error) {
	consumption, err := s.consumptions.Get(ctx, orderHash)
	if err != nil {
		return OrderStatusResponse{}, err
	}
	if consumption == nil {
		return OrderStatusResponse{
			OrderHash: orderHash.Hex(),
			Status:    domain.OrderStatusOpen,
		}, nil
	}

	resp := OrderStatusResponse{
		OrderHash:  orderHash.Hex(),
		ConsumedAt: &consumption.ConsumedAt,
	}

	record, err := s.settlements.GetByOrderHash(ctx, orderHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			resp.Status = domain.OrderStatusPending
			return resp, nil
		}
		return OrderStatusResponse{}, err
	}

	view := toRecordView(record)
	resp.Record = &view
	if record.Kind == domain.SettlementCancelled {
		resp.Status = domain.OrderStatusCancelled
	} else {
		resp.Status = domain.OrderStatusFulfilled
	}
	return resp, nil
}
