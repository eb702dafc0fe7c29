package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/tradeforge/settlement/internal/domain"
)

type attemptRepository struct {
	db *gorm.DB
}

func (r *attemptRepository) Insert(ctx context.Context, attempt domain.SettlementAttempt) error {
	rec := settlementAttemptModel{
		OrderHash:     attempt.OrderHash.Hex(),
		Caller:        attempt.Caller.Hex(),
		Operation:     attempt.Operation,
		Status:        attempt.Status,
		FailureReason: attempt.FailureReason,
		AttemptAt:     attempt.AttemptAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}
