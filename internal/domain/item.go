package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ItemType discriminates the Item union. The numeric values participate in the
// canonical hash encoding and must never be reordered.
type ItemType uint8

const (
	ItemNative ItemType = iota
	ItemFungible
	ItemNonFungible
	ItemSemiFungible
)

func (t ItemType) String() string {
	switch t {
	case ItemNative:
		return "NATIVE"
	case ItemFungible:
		return "FUNGIBLE"
	case ItemNonFungible:
		return "NON_FUNGIBLE"
	case ItemSemiFungible:
		return "SEMI_FUNGIBLE"
	default:
		return fmt.Sprintf("ITEM_TYPE_%d", uint8(t))
	}
}

// ParseItemType maps the wire representation back to an ItemType.
func ParseItemType(s string) (ItemType, error) {
	switch s {
	case "NATIVE":
		return ItemNative, nil
	case "FUNGIBLE":
		return ItemFungible, nil
	case "NON_FUNGIBLE":
		return ItemNonFungible, nil
	case "SEMI_FUNGIBLE":
		return ItemSemiFungible, nil
	default:
		return 0, fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, s)
	}
}

// Item is one side of an exchange. Exactly one variant applies; which of the
// asset, token id and amount fields are meaningful depends on Type. Fields that
// do not apply are normalized to zero so the canonical hash stays unambiguous.
type Item struct {
	Type    ItemType
	Asset   common.Address
	TokenID *big.Int
	Amount  *big.Int
}

// FungibleItem builds an amount-of-asset item. Token id is pinned to zero.
func FungibleItem(asset common.Address, amount *big.Int) Item {
	return Item{Type: ItemFungible, Asset: asset, TokenID: new(big.Int), Amount: amount}
}

// SemiFungibleItem builds an amount-of-token-under-asset item.
func SemiFungibleItem(asset common.Address, tokenID, amount *big.Int) Item {
	return Item{Type: ItemSemiFungible, Asset: asset, TokenID: tokenID, Amount: amount}
}

// NativeItem builds a chain-native currency item. The variant is reserved:
// settlement paths reject it, but it remains representable and hashable.
func NativeItem(amount *big.Int) Item {
	return Item{Type: ItemNative, TokenID: new(big.Int), Amount: amount}
}

// NonFungibleItem builds a unique-token item. Reserved, like NativeItem.
func NonFungibleItem(asset common.Address, tokenID *big.Int) Item {
	return Item{Type: ItemNonFungible, Asset: asset, TokenID: tokenID, Amount: big.NewInt(1)}
}

// Validate checks structural well-formedness only. Whether a variant is
// accepted by a given settlement path is decided by that path's own switch.
func (i Item) Validate() error {
	switch i.Type {
	case ItemNative:
	case ItemFungible, ItemNonFungible, ItemSemiFungible:
		if i.Asset == (common.Address{}) {
			return fmt.Errorf("%w: %s item requires an asset", ErrInvalidInput, i.Type)
		}
	default:
		return fmt.Errorf("%w: unknown item type %d", ErrInvalidInput, uint8(i.Type))
	}
	if i.Amount == nil || i.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: %s item requires a positive amount", ErrInvalidInput, i.Type)
	}
	if i.TokenID != nil && i.TokenID.Sign() < 0 {
		return fmt.Errorf("%w: negative token id", ErrInvalidInput)
	}
	if i.Type == ItemFungible && i.TokenIDOrZero().Sign() != 0 {
		return fmt.Errorf("%w: fungible item carries no token id", ErrInvalidInput)
	}
	return nil
}

// TokenIDOrZero returns the token id, treating nil as the zero sentinel.
func (i Item) TokenIDOrZero() *big.Int {
	if i.TokenID == nil {
		return new(big.Int)
	}
	return i.TokenID
}

// AmountOrZero returns the amount, treating nil as zero.
func (i Item) AmountOrZero() *big.Int {
	if i.Amount == nil {
		return new(big.Int)
	}
	return i.Amount
}
