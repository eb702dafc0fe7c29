package domain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseItemTypeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, itemType := range []ItemType{ItemNative, ItemFungible, ItemNonFungible, ItemSemiFungible} {
		parsed, err := ParseItemType(itemType.String())
		if err != nil {
			t.Fatalf("parse %s: %v", itemType, err)
		}
		if parsed != itemType {
			t.Fatalf("round trip changed %s into %s", itemType, parsed)
		}
	}

	if _, err := ParseItemType("ERC20"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown item type, got %v", err)
	}
}

func TestItemValidate(t *testing.T) {
	t.Parallel()

	asset := common.HexToAddress("0x2222222222222222222222222222222222222222")

	cases := []struct {
		name    string
		item    Item
		wantErr bool
	}{
		{"fungible ok", FungibleItem(asset, big.NewInt(100)), false},
		{"semi-fungible ok", SemiFungibleItem(asset, big.NewInt(7), big.NewInt(5)), false},
		{"native ok", NativeItem(big.NewInt(1)), false},
		{"non-fungible ok", NonFungibleItem(asset, big.NewInt(7)), false},
		{"fungible missing asset", FungibleItem(common.Address{}, big.NewInt(100)), true},
		{"fungible zero amount", FungibleItem(asset, new(big.Int)), true},
		{"fungible nil amount", Item{Type: ItemFungible, Asset: asset}, true},
		{"fungible negative amount", FungibleItem(asset, big.NewInt(-1)), true},
		{"fungible with token id", Item{Type: ItemFungible, Asset: asset, TokenID: big.NewInt(7), Amount: big.NewInt(100)}, true},
		{"semi-fungible negative token id", SemiFungibleItem(asset, big.NewInt(-1), big.NewInt(5)), true},
		{"semi-fungible missing asset", SemiFungibleItem(common.Address{}, big.NewInt(7), big.NewInt(5)), true},
		{"unknown type", Item{Type: ItemType(9), Asset: asset, Amount: big.NewInt(1)}, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.item.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
			if tc.wantErr && !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("validation error does not wrap ErrInvalidInput: %v", err)
			}
		})
	}
}

func TestItemConstructorsPinReservedFields(t *testing.T) {
	t.Parallel()

	asset := common.HexToAddress("0x2222222222222222222222222222222222222222")

	fungible := FungibleItem(asset, big.NewInt(100))
	if fungible.TokenIDOrZero().Sign() != 0 {
		t.Fatal("fungible items must carry the zero token id sentinel")
	}

	nonFungible := NonFungibleItem(asset, big.NewInt(7))
	if nonFungible.AmountOrZero().Cmp(big.NewInt(1)) != 0 {
		t.Fatal("non-fungible items must carry amount one")
	}

	native := NativeItem(big.NewInt(5))
	if native.Asset != (common.Address{}) {
		t.Fatal("native items carry no asset address")
	}
}

func TestItemTypeStringUnknown(t *testing.T) {
	t.Parallel()

	if got := ItemType(200).String(); got != "ITEM_TYPE_200" {
		t.Fatalf("unexpected string for unknown item type: %s", got)
	}
}
