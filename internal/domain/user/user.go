package user

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal owner identity the publish surface needs: JWT subject,
// pack ownership, and the chat the bot notifies on publish.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Handle    string    `gorm:"column:handle;not null;uniqueIndex" json:"handle"`
	ChatID    int64     `gorm:"column:chat_id;index" json:"chat_id"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string { return "user" }
