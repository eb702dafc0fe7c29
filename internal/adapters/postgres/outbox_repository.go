package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tradeforge/settlement/internal/ports"
)

type outboxRepository struct {
	db *gorm.DB
}

func (r *outboxRepository) Enqueue(ctx context.Context, event ports.OutboxEvent) error {
	row := settlementOutboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(event.Payload),
		CreatedAt:    event.OccurredAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// Lease stamps a batch of pending rows with the worker's token and returns
// them oldest first. SKIP LOCKED keeps concurrent workers off each other's
// rows, and a row whose previous lease has lapsed counts as pending again.
func (r *outboxRepository) Lease(ctx context.Context, limit int, leaseToken string, leaseUntil time.Time) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	if leaseToken == "" {
		return nil, fmt.Errorf("lease token is required")
	}

	var rows []settlementOutboxModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eligible := tx.Model(&settlementOutboxModel{}).
			Select("outbox_id").
			Where("delivered_at IS NULL AND dead_lettered_at IS NULL").
			Where("lease_until IS NULL OR lease_until < ?", time.Now().UTC()).
			Order("created_at ASC").
			Limit(limit).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})

		stamp := tx.Model(&settlementOutboxModel{}).
			Where("outbox_id IN (?)", eligible).
			Updates(map[string]any{"lease_token": leaseToken, "lease_until": leaseUntil})
		if stamp.Error != nil {
			return stamp.Error
		}
		if stamp.RowsAffected == 0 {
			return nil
		}

		return tx.
			Where("lease_token = ? AND delivered_at IS NULL AND dead_lettered_at IS NULL", leaseToken).
			Order("created_at ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	leased := make([]ports.OutboxRecord, len(rows))
	for i, row := range rows {
		leased[i] = ports.OutboxRecord{
			OutboxID:       row.OutboxID,
			EventType:      row.EventType,
			PartitionKey:   row.PartitionKey,
			Payload:        []byte(row.Payload),
			Attempts:       row.AttemptCount,
			LastError:      row.LastError,
			LastErrorAt:    row.LastErrorAt,
			CreatedAt:      row.CreatedAt,
			DeliveredAt:    row.DeliveredAt,
			LeaseToken:     row.LeaseToken,
			LeaseUntil:     row.LeaseUntil,
			DeadLetteredAt: row.DeadLetteredAt,
		}
	}
	return leased, nil
}

func (r *outboxRepository) MarkDelivered(ctx context.Context, outboxID uuid.UUID, leaseToken string, at time.Time) error {
	return r.resolve(ctx, outboxID, leaseToken, map[string]any{
		"delivered_at": at,
	})
}

func (r *outboxRepository) MarkRetry(ctx context.Context, outboxID uuid.UUID, leaseToken, cause string, at time.Time) error {
	return r.resolve(ctx, outboxID, leaseToken, map[string]any{
		"attempt_count": gorm.Expr("attempt_count + 1"),
		"last_error":    cause,
		"last_error_at": at,
	})
}

func (r *outboxRepository) DeadLetter(ctx context.Context, outboxID uuid.UUID, leaseToken, cause string, at time.Time) error {
	return r.resolve(ctx, outboxID, leaseToken, map[string]any{
		"attempt_count":    gorm.Expr("attempt_count + 1"),
		"last_error":       cause,
		"last_error_at":    at,
		"dead_lettered_at": at,
	})
}

// resolve applies a retry or terminal update to a row this worker holds and
// releases the lease in the same statement. The token guard means a worker
// whose lease lapsed mid-publish cannot overwrite another worker's bookkeeping.
func (r *outboxRepository) resolve(ctx context.Context, outboxID uuid.UUID, leaseToken string, updates map[string]any) error {
	updates["lease_token"] = nil
	updates["lease_until"] = nil
	return r.db.WithContext(ctx).
		Model(&settlementOutboxModel{}).
		Where("outbox_id = ? AND lease_token = ?", outboxID, leaseToken).
		Updates(updates).Error
}
