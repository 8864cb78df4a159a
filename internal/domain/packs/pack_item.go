package packs

import (
	"time"

	"github.com/google/uuid"
)

// PackItem is one sticker inside a pack. Position is 1-based and dense per
// pack; a sticker appears in exactly one position of exactly one pack.
type PackItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PackID    uuid.UUID `gorm:"type:uuid;column:pack_id;not null;index;uniqueIndex:idx_pack_item_position,priority:1;uniqueIndex:idx_pack_item_sticker,priority:1" json:"pack_id"`
	StickerID string    `gorm:"column:sticker_id;not null;uniqueIndex:idx_pack_item_sticker,priority:2" json:"sticker_id"`
	Position  int       `gorm:"column:position;not null;uniqueIndex:idx_pack_item_position,priority:2" json:"position"`
	Emoji     string    `gorm:"column:emoji" json:"emoji,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (PackItem) TableName() string { return "pack_item" }
