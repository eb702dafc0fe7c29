package postgres

import (
	"time"

	"github.com/google/uuid"
)

type consumptionModel struct {
	OrderHash  string    `gorm:"column:order_hash;primaryKey"`
	Kind       string    `gorm:"column:kind"`
	ConsumedAt time.Time `gorm:"column:consumed_at"`
}

func (consumptionModel) TableName() string { return "order_consumptions" }

type settlementRecordModel struct {
	RecordID              uuid.UUID `gorm:"column:record_id;type:uuid;primaryKey"`
	OrderHash             string    `gorm:"column:order_hash"`
	Kind                  string    `gorm:"column:kind"`
	Offerer               string    `gorm:"column:offerer"`
	Offeree               *string   `gorm:"column:offeree"`
	OfferItemType         int16     `gorm:"column:offer_item_type"`
	OfferAsset            string    `gorm:"column:offer_asset"`
	OfferTokenID          string    `gorm:"column:offer_token_id"`
	OfferAmount           string    `gorm:"column:offer_amount"`
	ConsiderationItemType int16     `gorm:"column:consideration_item_type"`
	ConsiderationAsset    string    `gorm:"column:consideration_asset"`
	ConsiderationTokenID  string    `gorm:"column:consideration_token_id"`
	ConsiderationAmount   string    `gorm:"column:consideration_amount"`
	RoyaltyReceiver       *string   `gorm:"column:royalty_receiver"`
	RoyaltyAmount         *string   `gorm:"column:royalty_amount"`
	SettledAt             time.Time `gorm:"column:settled_at"`
}

func (settlementRecordModel) TableName() string { return "settlement_records" }

type settlementAttemptModel struct {
	ID            int64     `gorm:"column:id;primaryKey"`
	OrderHash     string    `gorm:"column:order_hash"`
	Caller        string    `gorm:"column:caller"`
	Operation     string    `gorm:"column:operation"`
	Status        string    `gorm:"column:status"`
	FailureReason string    `gorm:"column:failure_reason"`
	AttemptAt     time.Time `gorm:"column:attempt_at"`
}

func (settlementAttemptModel) TableName() string { return "settlement_attempts" }

type settlementOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	DeliveredAt    *time.Time `gorm:"column:delivered_at"`
	AttemptCount   int        `gorm:"column:attempt_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	LeaseToken     *string    `gorm:"column:lease_token"`
	LeaseUntil     *time.Time `gorm:"column:lease_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (settlementOutboxModel) TableName() string { return "settlement_outbox" }

type settlementIdempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body;type:jsonb"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (settlementIdempotencyModel) TableName() string { return "settlement_idempotency" }
