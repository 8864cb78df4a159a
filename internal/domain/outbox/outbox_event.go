package outbox

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// OutboxEvent is one durable "this must eventually happen" row. Producers
// insert it inside their own transaction; workers drain it with at-least-once
// semantics. Attempts only ever increases and completed rows are never
// rewritten.
type OutboxEvent struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EventType      string         `gorm:"column:event_type;not null;index" json:"event_type"`
	AggregateType  string         `gorm:"column:aggregate_type;not null;index" json:"aggregate_type"`
	AggregateID    uuid.UUID      `gorm:"type:uuid;column:aggregate_id;index" json:"aggregate_id"`
	Payload        datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Status         string         `gorm:"column:status;not null;default:'pending';index" json:"status"`
	Priority       int            `gorm:"column:priority;not null;default:0;index" json:"priority"`
	IdempotencyKey *string        `gorm:"column:idempotency_key;uniqueIndex" json:"idempotency_key,omitempty"`
	AvailableAt    time.Time      `gorm:"column:available_at;not null;default:now();index" json:"available_at"`
	Attempts       int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts    int            `gorm:"column:max_attempts;not null;default:5" json:"max_attempts"`
	WorkerToken    *uuid.UUID     `gorm:"type:uuid;column:worker_token" json:"worker_token,omitempty"`
	LockedAt       *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	LastError      string         `gorm:"column:last_error" json:"last_error,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (OutboxEvent) TableName() string { return "outbox_event" }

// LeaseExpired reports whether a processing row's lease is stale and may be
// reclaimed by another worker.
func (e *OutboxEvent) LeaseExpired(now time.Time, leaseTTL time.Duration) bool {
	if e.Status != StatusProcessing || e.LockedAt == nil {
		return false
	}
	return e.LockedAt.Add(leaseTTL).Before(now)
}
