package application

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/tradeforge/settlement/internal/domain"
	"github.com/tradeforge/settlement/internal/ports"
)

const (
	// EventTypeOrderFulfilled is emitted when an order settles with both legs
	// transferred (directly or via voucher mint).
	EventTypeOrderFulfilled = "settlement.order.fulfilled"
	// EventTypeOrderCancelled is emitted when the offerer voids an order.
	EventTypeOrderCancelled = "settlement.order.cancelled"
)

// settlementEvent builds the outbox envelope for a terminal order outcome.
// The order hash is the partition key so every event for one order lands on
// the same partition, in consumption order.
func settlementEvent(record domain.SettlementRecord) ports.OutboxEvent {
	eventType := EventTypeOrderFulfilled
	if record.Kind == domain.SettlementCancelled {
		eventType = EventTypeOrderCancelled
	}
	payload, _ := json.Marshal(toRecordView(record))
	return ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: record.OrderHash.Hex(),
		Payload:      payload,
		OccurredAt:   record.SettledAt,
	}
}
