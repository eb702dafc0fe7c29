package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tradeforge/settlement/internal/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOutbox struct {
	mu        sync.Mutex
	pending   []ports.OutboxRecord
	lease     string
	delivered []uuid.UUID
	retried   map[uuid.UUID]string
	dead      map[uuid.UUID]string
}

func newFakeOutbox(pending ...ports.OutboxRecord) *fakeOutbox {
	return &fakeOutbox{
		pending: pending,
		retried: map[uuid.UUID]string{},
		dead:    map[uuid.UUID]string{},
	}
}

func (f *fakeOutbox) Enqueue(context.Context, ports.OutboxEvent) error { return nil }

func (f *fakeOutbox) Lease(_ context.Context, limit int, leaseToken string, _ time.Time) ([]ports.OutboxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lease = leaseToken
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	batch := f.pending[:limit]
	f.pending = f.pending[limit:]
	return batch, nil
}

func (f *fakeOutbox) MarkDelivered(_ context.Context, outboxID uuid.UUID, leaseToken string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if leaseToken != f.lease {
		return errors.New("lease token mismatch")
	}
	f.delivered = append(f.delivered, outboxID)
	return nil
}

func (f *fakeOutbox) MarkRetry(_ context.Context, outboxID uuid.UUID, leaseToken, cause string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if leaseToken != f.lease {
		return errors.New("lease token mismatch")
	}
	f.retried[outboxID] = cause
	return nil
}

func (f *fakeOutbox) DeadLetter(_ context.Context, outboxID uuid.UUID, leaseToken, cause string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if leaseToken != f.lease {
		return errors.New("lease token mismatch")
	}
	f.dead[outboxID] = cause
	return nil
}

type sentEvent struct {
	eventType    string
	partitionKey string
}

type fakePublisher struct {
	mu   sync.Mutex
	fail map[string]error
	sent []sentEvent
}

func (f *fakePublisher) Publish(_ context.Context, eventType string, _ []byte, partitionKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[eventType]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentEvent{eventType: eventType, partitionKey: partitionKey})
	return nil
}

func outboxRecord(eventType, partitionKey string, attempts int) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:     uuid.New(),
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      []byte(`{"order_hash":"0xabc"}`),
		Attempts:     attempts,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestDrainDeliversBatchInOrder(t *testing.T) {
	t.Parallel()

	first := outboxRecord("settlement.order.fulfilled", "0x01", 0)
	second := outboxRecord("settlement.order.cancelled", "0x02", 0)
	outbox := newFakeOutbox(first, second)
	pub := &fakePublisher{}

	w := NewOutboxWorker(testLogger(), outbox, pub, OutboxWorkerConfig{})
	if err := w.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if len(pub.sent) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.sent))
	}
	if pub.sent[0].partitionKey != "0x01" || pub.sent[1].partitionKey != "0x02" {
		t.Fatalf("events delivered out of order: %+v", pub.sent)
	}
	if len(outbox.delivered) != 2 {
		t.Fatalf("marked %d delivered, want 2", len(outbox.delivered))
	}
	if len(outbox.retried) != 0 || len(outbox.dead) != 0 {
		t.Fatalf("unexpected retry/dead bookkeeping: %+v %+v", outbox.retried, outbox.dead)
	}
}

func TestDrainSchedulesRetryOnPublishFailure(t *testing.T) {
	t.Parallel()

	rec := outboxRecord("settlement.order.fulfilled", "0x01", 0)
	outbox := newFakeOutbox(rec)
	pub := &fakePublisher{fail: map[string]error{
		"settlement.order.fulfilled": errors.New("broker unreachable"),
	}}

	w := NewOutboxWorker(testLogger(), outbox, pub, OutboxWorkerConfig{MaxAttempts: 3})
	if err := w.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	cause, ok := outbox.retried[rec.OutboxID]
	if !ok {
		t.Fatal("record not scheduled for retry")
	}
	if cause != "broker unreachable" {
		t.Fatalf("retry cause = %q", cause)
	}
	if len(outbox.dead) != 0 {
		t.Fatalf("record dead-lettered early: %+v", outbox.dead)
	}
}

func TestDrainParksRecordAtAttemptLimit(t *testing.T) {
	t.Parallel()

	rec := outboxRecord("settlement.order.fulfilled", "0x01", 2)
	outbox := newFakeOutbox(rec)
	pub := &fakePublisher{fail: map[string]error{
		"settlement.order.fulfilled": errors.New("broker unreachable"),
	}}

	w := NewOutboxWorker(testLogger(), outbox, pub, OutboxWorkerConfig{MaxAttempts: 3})
	if err := w.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if _, ok := outbox.dead[rec.OutboxID]; !ok {
		t.Fatal("record at attempt limit not dead-lettered")
	}
	if len(outbox.retried) != 0 {
		t.Fatalf("record both retried and dead-lettered: %+v", outbox.retried)
	}
}

func TestDrainParksExhaustedRecordWithoutPublishing(t *testing.T) {
	t.Parallel()

	rec := outboxRecord("settlement.order.fulfilled", "0x01", 5)
	outbox := newFakeOutbox(rec)
	pub := &fakePublisher{}

	w := NewOutboxWorker(testLogger(), outbox, pub, OutboxWorkerConfig{MaxAttempts: 5})
	if err := w.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if len(pub.sent) != 0 {
		t.Fatalf("exhausted record still published: %+v", pub.sent)
	}
	if _, ok := outbox.dead[rec.OutboxID]; !ok {
		t.Fatal("exhausted record not dead-lettered")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	outbox := newFakeOutbox()
	w := NewOutboxWorker(testLogger(), outbox, &fakePublisher{}, OutboxWorkerConfig{
		PollInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
