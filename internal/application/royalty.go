package application

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tradeforge/settlement/internal/domain"
	"github.com/tradeforge/settlement/internal/ports"
)

// resolvedRoyalty is the outcome of royalty resolution. The zero value is the
// zero-royalty sentinel: no receiver, nothing owed.
type resolvedRoyalty struct {
	Receiver common.Address
	Amount   *big.Int
}

func (r resolvedRoyalty) zero() bool {
	return r.Amount == nil || r.Amount.Sign() == 0
}

// validateExchangePair enforces which item pairings have a settlement path:
// exactly one side Fungible (the payment), the other SemiFungible (the asset
// being sold). Reserved and unknown variants fail hard. Pure, so entry points
// can run it before touching the consumption ledger.
func validateExchangePair(offerItem, considerationItem domain.Item) error {
	for _, item := range []domain.Item{offerItem, considerationItem} {
		switch item.Type {
		case domain.ItemFungible, domain.ItemSemiFungible:
		case domain.ItemNative, domain.ItemNonFungible:
			return fmt.Errorf("%w: %s has no settlement path", domain.ErrUnsupportedItemType, item.Type)
		default:
			return fmt.Errorf("%w: unknown item type %d", domain.ErrUnsupportedItemType, uint8(item.Type))
		}
	}
	if (offerItem.Type == domain.ItemFungible) == (considerationItem.Type == domain.ItemFungible) {
		return fmt.Errorf("%w: exactly one side must be fungible", domain.ErrUnsupportedItemType)
	}
	return nil
}

// resolveRoyalty decides what, if anything, is owed to a third-party receiver
// for this exchange. Royalty applies only when the asset's registry advertises
// the royalty capability. An asset without it settles with zero royalty,
// which is a supported outcome, not an error.
func (s *Service) resolveRoyalty(ctx context.Context, offerItem, considerationItem domain.Item) (resolvedRoyalty, error) {
	if err := validateExchangePair(offerItem, considerationItem); err != nil {
		return resolvedRoyalty{}, err
	}

	assetSide, paymentSide := offerItem, considerationItem
	if offerItem.Type == domain.ItemFungible {
		assetSide, paymentSide = considerationItem, offerItem
	}

	supported, err := s.prober.Supports(ctx, assetSide.Asset, ports.RoyaltyCapability)
	if err != nil {
		return resolvedRoyalty{}, fmt.Errorf("probe royalty capability: %w", err)
	}
	if !supported {
		return resolvedRoyalty{}, nil
	}

	salePrice := paymentSide.AmountOrZero()
	receiver, amount, err := s.royalties.RoyaltyInfo(ctx, assetSide.Asset, assetSide.TokenIDOrZero(), salePrice)
	if err != nil {
		return resolvedRoyalty{}, fmt.Errorf("query royalty info: %w", err)
	}
	if amount == nil || amount.Sign() == 0 || receiver == (common.Address{}) {
		return resolvedRoyalty{}, nil
	}
	if amount.Sign() < 0 {
		return resolvedRoyalty{}, fmt.Errorf("%w: negative royalty amount", domain.ErrRoyaltyExceedsSalePrice)
	}
	if amount.Cmp(salePrice) > 0 {
		return resolvedRoyalty{}, fmt.Errorf("%w: royalty %s over sale price %s",
			domain.ErrRoyaltyExceedsSalePrice, amount.String(), salePrice.String())
	}
	return resolvedRoyalty{Receiver: receiver, Amount: amount}, nil
}
