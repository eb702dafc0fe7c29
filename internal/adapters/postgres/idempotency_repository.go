package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tradeforge/settlement/internal/domain"
	"github.com/tradeforge/settlement/internal/ports"
)

type idempotencyRepository struct {
	db *gorm.DB
}

// Find returns nil without error for an unknown key; absence is the common
// case and not a failure.
func (r *idempotencyRepository) Find(ctx context.Context, key string) (*ports.IdempotencyRecord, error) {
	var row settlementIdempotencyModel
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return row.toPortRecord(), nil
}

// Reserve claims the key by primary-key insert. Losing the race surfaces as
// domain.ErrConflict, which the caller maps to an idempotency conflict.
func (r *idempotencyRepository) Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error {
	row := settlementIdempotencyModel{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Status:         "PENDING",
		ExpiresAt:      expiresAt,
	}
	err := r.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *idempotencyRepository) Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	values := map[string]any{
		"status":        "COMPLETED",
		"response_code": responseCode,
		"response_body": nil,
		"updated_at":    at,
	}
	if len(responseBody) > 0 {
		values["response_body"] = string(responseBody)
	}
	return r.db.WithContext(ctx).
		Model(&settlementIdempotencyModel{}).
		Where("idempotency_key = ?", key).
		Updates(values).Error
}

func (m settlementIdempotencyModel) toPortRecord() *ports.IdempotencyRecord {
	rec := ports.IdempotencyRecord{
		Key:          m.IdempotencyKey,
		RequestHash:  m.RequestHash,
		Status:       m.Status,
		ResponseCode: m.ResponseCode,
		ExpiresAt:    m.ExpiresAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.ResponseBody != nil {
		rec.ResponseBody = []byte(*m.ResponseBody)
	}
	return &rec
}
