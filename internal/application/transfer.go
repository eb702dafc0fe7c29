package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tradeforge/settlement/internal/domain"
)

// compensation undoes one executed transfer so a failed settlement can be
// rolled back. Compensations run in reverse execution order.
type compensation struct {
	describe string
	run      func(ctx context.Context) error
}

// settleDirect executes one exchange leg from payer to payee and returns the
// compensations for whatever actually moved, also on error. The royalty is
// consulted only by the Fungible arm: a Fungible leg of amount A is split into
// (A − R) to the payee and R to the royalty receiver, omitting zero transfers.
// SemiFungible legs always move whole; royalty is never carved out in kind.
func (s *Service) settleDirect(
	ctx context.Context,
	payer, payee common.Address,
	item domain.Item,
	royalty resolvedRoyalty,
) ([]compensation, error) {
	switch item.Type {
	case domain.ItemFungible:
		comps := make([]compensation, 0, 2)
		asset := item.Asset
		net := new(big.Int).Set(item.AmountOrZero())
		if !royalty.zero() {
			net.Sub(net, royalty.Amount)
		}
		if net.Sign() > 0 {
			if err := s.fungibles.TransferFrom(ctx, asset, payer, payee, net); err != nil {
				return comps, fmt.Errorf("fungible leg: %w", err)
			}
			reversed := new(big.Int).Set(net)
			comps = append(comps, compensation{
				describe: fmt.Sprintf("fungible %s %s->%s", asset.Hex(), payer.Hex(), payee.Hex()),
				run: func(ctx context.Context) error {
					return s.fungibles.TransferFrom(ctx, asset, payee, payer, reversed)
				},
			})
		}
		if !royalty.zero() {
			receiver := royalty.Receiver
			amount := new(big.Int).Set(royalty.Amount)
			if err := s.fungibles.TransferFrom(ctx, asset, payer, receiver, amount); err != nil {
				return comps, fmt.Errorf("royalty leg: %w", err)
			}
			comps = append(comps, compensation{
				describe: fmt.Sprintf("royalty %s %s->%s", asset.Hex(), payer.Hex(), receiver.Hex()),
				run: func(ctx context.Context) error {
					return s.fungibles.TransferFrom(ctx, asset, receiver, payer, amount)
				},
			})
		}
		return comps, nil

	case domain.ItemSemiFungible:
		asset := item.Asset
		tokenID := new(big.Int).Set(item.TokenIDOrZero())
		amount := new(big.Int).Set(item.AmountOrZero())
		if err := s.semiFungibles.SafeTransferFrom(ctx, asset, payer, payee, tokenID, amount, nil); err != nil {
			return nil, fmt.Errorf("semi-fungible leg: %w", err)
		}
		return []compensation{{
			describe: fmt.Sprintf("semi-fungible %s token %s %s->%s", asset.Hex(), tokenID.String(), payer.Hex(), payee.Hex()),
			run: func(ctx context.Context) error {
				return s.semiFungibles.SafeTransferFrom(ctx, asset, payee, payer, tokenID, amount, nil)
			},
		}}, nil

	case domain.ItemNative, domain.ItemNonFungible:
		return nil, fmt.Errorf("%w: %s has no transfer rule", domain.ErrUnsupportedItemType, item.Type)
	default:
		return nil, fmt.Errorf("%w: unknown item type %d", domain.ErrUnsupportedItemType, uint8(item.Type))
	}
}

// settleWithVoucher mints the offer item to the receiving party through the
// issuer. Minting is irreversible, so callers order this leg last; there is no
// compensation to return.
func (s *Service) settleWithVoucher(
	ctx context.Context,
	to common.Address,
	item domain.Item,
	voucher domain.Voucher,
	signature []byte,
) error {
	switch item.Type {
	case domain.ItemSemiFungible:
		if err := s.issuer.RedeemVoucherTo(ctx, item.Asset, to, voucher, signature); err != nil {
			return fmt.Errorf("redeem voucher: %w", err)
		}
		return nil
	case domain.ItemFungible:
		return fmt.Errorf("%w: fungible items cannot be voucher-minted", domain.ErrVoucherRedeemNotSupported)
	case domain.ItemNative, domain.ItemNonFungible:
		return fmt.Errorf("%w: %s has no voucher mint rule", domain.ErrUnsupportedItemType, item.Type)
	default:
		return fmt.Errorf("%w: unknown item type %d", domain.ErrUnsupportedItemType, uint8(item.Type))
	}
}

// unwind rolls executed legs back in reverse order, then releases the
// consumption marker so a legitimately signed order remains fulfillable after
// a failed attempt. If any compensation fails the marker is kept: re-running
// settlement on top of a half-reversed exchange is worse than a stuck order.
func (s *Service) unwind(ctx context.Context, orderHash common.Hash, comps []compensation) error {
	var failures []error
	for i := len(comps) - 1; i >= 0; i-- {
		if err := comps[i].run(ctx); err != nil {
			failures = append(failures, fmt.Errorf("compensate %s: %w", comps[i].describe, err))
		}
	}
	if len(failures) > 0 {
		joined := errors.Join(failures...)
		slog.Default().ErrorContext(ctx, "settlement compensation incomplete, consumption kept",
			"service", "Settlement-Service",
			"module", "application",
			"layer", "application",
			"operation", "unwind_settlement",
			"outcome", "failure",
			"order_hash", orderHash.Hex(),
			"error", joined,
		)
		return joined
	}
	if err := s.consumptions.Release(ctx, orderHash); err != nil {
		slog.Default().ErrorContext(ctx, "failed to release consumption after rollback",
			"service", "Settlement-Service",
			"module", "application",
			"layer", "application",
			"operation", "unwind_settlement",
			"outcome", "failure",
			"order_hash", orderHash.Hex(),
			"error", err,
		)
		return fmt.Errorf("release consumption: %w", err)
	}
	return nil
}
