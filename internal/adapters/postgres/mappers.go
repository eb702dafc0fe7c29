package postgres

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	"github.com/tradeforge/settlement/internal/domain"
)

func toRecordModel(record domain.SettlementRecord) settlementRecordModel {
	offerType, offerAsset, offerTokenID, offerAmount := itemToColumns(record.OfferItem)
	considType, considAsset, considTokenID, considAmount := itemToColumns(record.ConsiderationItem)
	return settlementRecordModel{
		RecordID:              record.RecordID,
		OrderHash:             record.OrderHash.Hex(),
		Kind:                  record.Kind,
		Offerer:               record.Offerer.Hex(),
		Offeree:               nullableAddress(record.Offeree),
		OfferItemType:         offerType,
		OfferAsset:            offerAsset,
		OfferTokenID:          offerTokenID,
		OfferAmount:           offerAmount,
		ConsiderationItemType: considType,
		ConsiderationAsset:    considAsset,
		ConsiderationTokenID:  considTokenID,
		ConsiderationAmount:   considAmount,
		RoyaltyReceiver:       nullableAddress(record.RoyaltyReceiver),
		RoyaltyAmount:         nullableAmount(record.RoyaltyAmount),
		SettledAt:             record.SettledAt,
	}
}

func toDomainRecord(row settlementRecordModel) (domain.SettlementRecord, error) {
	offerItem, err := itemFromColumns(row.OfferItemType, row.OfferAsset, row.OfferTokenID, row.OfferAmount)
	if err != nil {
		return domain.SettlementRecord{}, fmt.Errorf("offer item: %w", err)
	}
	considerationItem, err := itemFromColumns(row.ConsiderationItemType, row.ConsiderationAsset, row.ConsiderationTokenID, row.ConsiderationAmount)
	if err != nil {
		return domain.SettlementRecord{}, fmt.Errorf("consideration item: %w", err)
	}
	out := domain.SettlementRecord{
		RecordID:          row.RecordID,
		OrderHash:         common.HexToHash(row.OrderHash),
		Kind:              row.Kind,
		Offerer:           common.HexToAddress(row.Offerer),
		OfferItem:         offerItem,
		ConsiderationItem: considerationItem,
		SettledAt:         row.SettledAt,
	}
	if row.Offeree != nil {
		out.Offeree = common.HexToAddress(*row.Offeree)
	}
	if row.RoyaltyReceiver != nil {
		out.RoyaltyReceiver = common.HexToAddress(*row.RoyaltyReceiver)
	}
	if row.RoyaltyAmount != nil {
		amount, err := parseDecimal("royalty_amount", *row.RoyaltyAmount)
		if err != nil {
			return domain.SettlementRecord{}, err
		}
		out.RoyaltyAmount = amount
	}
	return out, nil
}

func toDomainConsumption(row consumptionModel) domain.Consumption {
	return domain.Consumption{
		OrderHash:  common.HexToHash(row.OrderHash),
		Kind:       row.Kind,
		ConsumedAt: row.ConsumedAt,
	}
}

// Item columns store big integers as base-10 text so token ids and amounts
// survive the full uint256 range without driver-specific numeric handling.
func itemToColumns(item domain.Item) (int16, string, string, string) {
	return int16(item.Type), item.Asset.Hex(), item.TokenIDOrZero().String(), item.AmountOrZero().String()
}

func itemFromColumns(itemType int16, asset, tokenID, amount string) (domain.Item, error) {
	id, err := parseDecimal("token_id", tokenID)
	if err != nil {
		return domain.Item{}, err
	}
	amt, err := parseDecimal("amount", amount)
	if err != nil {
		return domain.Item{}, err
	}
	return domain.Item{
		Type:    domain.ItemType(itemType),
		Asset:   common.HexToAddress(asset),
		TokenID: id,
		Amount:  amt,
	}, nil
}

func parseDecimal(column, v string) (*big.Int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, fmt.Errorf("parse %s %q: not a base-10 integer", column, v)
	}
	return n, nil
}

func nullableAddress(addr common.Address) *string {
	if addr == (common.Address{}) {
		return nil
	}
	hex := addr.Hex()
	return &hex
}

func nullableAmount(v *big.Int) *string {
	if v == nil || v.Sign() == 0 {
		return nil
	}
	raw := v.String()
	return &raw
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
