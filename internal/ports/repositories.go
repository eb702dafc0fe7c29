package ports

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/tradeforge/settlement/internal/domain"
)

// ConsumptionRepository is the authorization ledger: one row per consumed order
// hash, created atomically so concurrent fulfill/cancel of the same order can
// never both succeed. Consume must surface domain.ErrAlreadyConsumed on a
// duplicate hash without any check-then-set window.
type ConsumptionRepository interface {
	Consume(ctx context.Context, consumption domain.Consumption) error
	// Release undoes a reservation after a failed settlement. It is the only
	// path that removes a consumption entry.
	Release(ctx context.Context, orderHash common.Hash) error
	Get(ctx context.Context, orderHash common.Hash) (*domain.Consumption, error)
}

// SettlementRepository persists the append-only audit trail of terminal order
// outcomes. The transactional method exists to enforce record+outbox
// consistency.
type SettlementRepository interface {
	RecordWithOutboxTx(ctx context.Context, record domain.SettlementRecord, outboxEvent OutboxEvent) error
	GetByOrderHash(ctx context.Context, orderHash common.Hash) (domain.SettlementRecord, error)
}

// AttemptRepository stores failed entry-point calls for audit. Best-effort:
// callers log insert errors and move on.
type AttemptRepository interface {
	Insert(ctx context.Context, attempt domain.SettlementAttempt) error
}

// OutboxEvent is an event as written, inside the same transaction as the
// settlement record it announces. PartitionKey carries the order hash so the
// broker keeps per-order delivery ordered.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord is a stored event awaiting broker delivery. The lease fields
// name the worker instance that currently owns the record; Attempts counts
// delivery tries and drives the dead-letter cutoff.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	Attempts       int
	LastError      *string
	LastErrorAt    *time.Time
	CreatedAt      time.Time
	DeliveredAt    *time.Time
	LeaseToken     *string
	LeaseUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository is the durable half of the transactional outbox. Enqueue
// happens inside settlement transactions; the delivery worker leases pending
// rows and reports back per record. A lease expires on its own, so a crashed
// worker never strands events.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	Lease(ctx context.Context, limit int, leaseToken string, leaseUntil time.Time) ([]OutboxRecord, error)
	MarkDelivered(ctx context.Context, outboxID uuid.UUID, leaseToken string, at time.Time) error
	MarkRetry(ctx context.Context, outboxID uuid.UUID, leaseToken, cause string, at time.Time) error
	DeadLetter(ctx context.Context, outboxID uuid.UUID, leaseToken, cause string, at time.Time) error
}

// IdempotencyRecord remembers the outcome of a keyed settlement call so an
// exact retry is answered from storage instead of settling twice.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdempotencyRepository backs exactly-once entry-point semantics. Reserve
// races on the key's primary key, so two concurrent calls sharing a key can
// never both reach settlement.
type IdempotencyRepository interface {
	Find(ctx context.Context, key string) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}
