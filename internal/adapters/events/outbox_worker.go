package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tradeforge/settlement/internal/ports"
)

// OutboxWorkerConfig tunes the delivery loop. Zero values fall back to
// defaults that match the service configuration defaults.
type OutboxWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	LeaseTTL     time.Duration
	MaxAttempts  int
}

type deliveryOutcome int

const (
	outcomeDelivered deliveryOutcome = iota
	outcomeRetried
	outcomeParked
)

// OutboxWorker drains the settlement outbox into the broker. Settlement
// records commit together with their events; this loop is what turns those
// committed rows into actual broker deliveries.
type OutboxWorker struct {
	logger    *slog.Logger
	outbox    ports.OutboxRepository
	publisher ports.EventPublisher
	cfg       OutboxWorkerConfig
}

func NewOutboxWorker(logger *slog.Logger, outbox ports.OutboxRepository, publisher ports.EventPublisher, cfg OutboxWorkerConfig) *OutboxWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &OutboxWorker{logger: logger, outbox: outbox, publisher: publisher, cfg: cfg}
}

// Run drains the outbox on every tick until the context is cancelled.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.drain(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox drain failed",
				"module", "events.outbox",
				"layer", "adapter",
				"operation", "outbox_drain",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain leases one batch under a fresh token and walks it in order. Broker
// failures only affect the failing record; the rest of the batch still ships.
func (w *OutboxWorker) drain(ctx context.Context) error {
	lease := uuid.NewString()
	batch, err := w.outbox.Lease(ctx, w.cfg.BatchSize, lease, time.Now().UTC().Add(w.cfg.LeaseTTL))
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	var delivered, retried, parked int
	for _, rec := range batch {
		switch w.deliver(ctx, lease, rec) {
		case outcomeDelivered:
			delivered++
		case outcomeRetried:
			retried++
		case outcomeParked:
			parked++
		}
	}

	w.logger.InfoContext(ctx, "outbox batch drained",
		"module", "events.outbox",
		"layer", "adapter",
		"operation", "outbox_drain",
		"outcome", "success",
		"batch_size", len(batch),
		"delivered_count", delivered,
		"retried_count", retried,
		"dead_lettered_count", parked,
	)
	return nil
}

func (w *OutboxWorker) deliver(ctx context.Context, lease string, rec ports.OutboxRecord) deliveryOutcome {
	now := time.Now().UTC()
	if rec.Attempts >= w.cfg.MaxAttempts {
		_ = w.outbox.DeadLetter(ctx, rec.OutboxID, lease, "attempt limit reached before delivery", now)
		return outcomeParked
	}

	pubErr := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey)
	if pubErr == nil {
		_ = w.outbox.MarkDelivered(ctx, rec.OutboxID, lease, now)
		return outcomeDelivered
	}

	attrs := []any{
		"module", "events.outbox",
		"layer", "adapter",
		"operation", "deliver_event",
		"outcome", "failure",
		"outbox_id", rec.OutboxID,
		"event_type", rec.EventType,
		"partition_key", rec.PartitionKey,
		"payload_bytes", len(rec.Payload),
		"attempts", rec.Attempts + 1,
		"error", pubErr,
	}
	if rec.Attempts+1 >= w.cfg.MaxAttempts {
		w.logger.ErrorContext(ctx, "settlement event moved to dead letter queue", attrs...)
		_ = w.outbox.DeadLetter(ctx, rec.OutboxID, lease, pubErr.Error(), now)
		return outcomeParked
	}

	w.logger.WarnContext(ctx, "event delivery failed, retry scheduled", attrs...)
	_ = w.outbox.MarkRetry(ctx, rec.OutboxID, lease, pubErr.Error(), now)
	return outcomeRetried
}
