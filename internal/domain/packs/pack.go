package packs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PackStatusDraft      = "draft"
	PackStatusUploading  = "uploading"
	PackStatusProcessing = "processing"
	PackStatusPublished  = "published"
	PackStatusFailed     = "failed"
)

// Pack is a user-submitted sticker pack. The row itself is the serialization
// point for its lifecycle: every upload and finalize takes a row lock before
// deciding a transition. Version bumps on every status change so stale
// writers are detectable.
type Pack struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID    uuid.UUID      `gorm:"type:uuid;column:owner_user_id;not null;index" json:"owner_user_id"`
	PackKey        string         `gorm:"column:pack_key;not null;uniqueIndex" json:"pack_key"`
	Title          string         `gorm:"column:title;not null" json:"title"`
	Status         string         `gorm:"column:status;not null;default:'draft';index" json:"status"`
	CoverStickerID *string        `gorm:"column:cover_sticker_id" json:"cover_sticker_id,omitempty"`
	Version        int64          `gorm:"column:version;not null;default:0" json:"version"`
	PublishedAt    *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Pack) TableName() string { return "pack" }

// AcceptsUploads reports whether new upload attempts may reserve a ledger
// slot in the pack's current state. Published packs are frozen; processing
// means a finalize snapshot is in flight and the client should retry.
func (p *Pack) AcceptsUploads() bool {
	switch p.Status {
	case PackStatusDraft, PackStatusUploading, PackStatusFailed:
		return true
	}
	return false
}
