package ports

import "context"

// EventPublisher is the outbound settlement-event publish port.
// The application uses this abstraction to keep broker/client concerns in
// adapters; the partition key preserves per-order ordering on partitioned
// brokers.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
