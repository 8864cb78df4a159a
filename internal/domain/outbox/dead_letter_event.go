package outbox

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DeadLetterEvent holds a copy of an event that exhausted its retry budget.
// Keyed by the source event id so repeated Fail calls update the same row
// instead of duplicating it.
type DeadLetterEvent struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EventID       uuid.UUID      `gorm:"type:uuid;column:event_id;not null;uniqueIndex" json:"event_id"`
	EventType     string         `gorm:"column:event_type;not null;index" json:"event_type"`
	AggregateType string         `gorm:"column:aggregate_type" json:"aggregate_type"`
	AggregateID   uuid.UUID      `gorm:"type:uuid;column:aggregate_id" json:"aggregate_id"`
	Payload       datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Attempts      int            `gorm:"column:attempts;not null" json:"attempts"`
	LastError     string         `gorm:"column:last_error" json:"last_error"`
	DeadAt        time.Time      `gorm:"column:dead_at;not null;default:now();index" json:"dead_at"`
}

func (DeadLetterEvent) TableName() string { return "outbox_dead_letter" }
