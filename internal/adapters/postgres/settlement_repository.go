package postgres

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	"github.com/tradeforge/settlement/internal/domain"
	"github.com/tradeforge/settlement/internal/ports"
)

type settlementRepository struct {
	db *gorm.DB
}

// RecordWithOutboxTx persists the settlement record and its event in one
// transaction, so a published event always has a matching record behind it.
func (r *settlementRepository) RecordWithOutboxTx(ctx context.Context, record domain.SettlementRecord, outboxEvent ports.OutboxEvent) error {
	rec := toRecordModel(record)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}

		payload := outboxEvent.Payload
		if len(payload) == 0 {
			payload = []byte(`{}`)
		}
		outbox := settlementOutboxModel{
			OutboxID:     outboxEvent.EventID,
			EventType:    outboxEvent.EventType,
			PartitionKey: outboxEvent.PartitionKey,
			Payload:      string(payload),
			CreatedAt:    outboxEvent.OccurredAt,
		}
		return tx.Create(&outbox).Error
	})
}

func (r *settlementRepository) GetByOrderHash(ctx context.Context, orderHash common.Hash) (domain.SettlementRecord, error) {
	var rec settlementRecordModel
	if err := r.db.WithContext(ctx).Where("order_hash = ?", orderHash.Hex()).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SettlementRecord{}, domain.ErrNotFound
		}
		return domain.SettlementRecord{}, err
	}
	return toDomainRecord(rec)
}
