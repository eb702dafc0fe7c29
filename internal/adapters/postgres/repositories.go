package postgres

import (
	"gorm.io/gorm"

	"github.com/tradeforge/settlement/internal/ports"
)

type Repositories struct {
	Consumptions ports.ConsumptionRepository
	Settlements  ports.SettlementRepository
	Attempts     ports.AttemptRepository
	Outbox       ports.OutboxRepository
	Idempotency  ports.IdempotencyRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Consumptions: &consumptionRepository{db: db},
		Settlements:  &settlementRepository{db: db},
		Attempts:     &attemptRepository{db: db},
		Outbox:       &outboxRepository{db: db},
		Idempotency:  &idempotencyRepository{db: db},
	}
}
