package postgres

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	"github.com/tradeforge/settlement/internal/domain"
)

type consumptionRepository struct {
	db *gorm.DB
}

// Consume inserts the consumption row. The primary key on order_hash is what
// makes replay impossible: the second writer for a hash always loses, with no
// read-then-write window.
func (r *consumptionRepository) Consume(ctx context.Context, consumption domain.Consumption) error {
	rec := consumptionModel{
		OrderHash:  consumption.OrderHash.Hex(),
		Kind:       consumption.Kind,
		ConsumedAt: consumption.ConsumedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyConsumed
		}
		return err
	}
	return nil
}

func (r *consumptionRepository) Release(ctx context.Context, orderHash common.Hash) error {
	return r.db.WithContext(ctx).
		Where("order_hash = ?", orderHash.Hex()).
		Delete(&consumptionModel{}).Error
}

func (r *consumptionRepository) Get(ctx context.Context, orderHash common.Hash) (*domain.Consumption, error) {
	var rec consumptionModel
	if err := r.db.WithContext(ctx).Where("order_hash = ?", orderHash.Hex()).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	out := toDomainConsumption(rec)
	return &out, nil
}
