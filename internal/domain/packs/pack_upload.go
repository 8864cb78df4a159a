package packs

import (
	"time"

	"github.com/google/uuid"
)

const (
	UploadStatusPending    = "pending"
	UploadStatusProcessing = "processing"
	UploadStatusDone       = "done"
	UploadStatusFailed     = "failed"
)

// PackUpload journals one logical upload attempt against a pack. Two keys
// make resubmission idempotent on their own: (pack_id, upload_id) pins a
// client attempt, (pack_id, sticker_hash) pins the content. A done entry is
// terminal and authoritative even when the client lost the response.
type PackUpload struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PackID        uuid.UUID  `gorm:"type:uuid;column:pack_id;not null;index;uniqueIndex:idx_pack_upload_id,priority:1;uniqueIndex:idx_pack_upload_hash,priority:1" json:"pack_id"`
	UploadID      string     `gorm:"column:upload_id;not null;uniqueIndex:idx_pack_upload_id,priority:2" json:"upload_id"`
	StickerHash   string     `gorm:"column:sticker_hash;not null;uniqueIndex:idx_pack_upload_hash,priority:2" json:"sticker_hash"`
	UploadStatus  string     `gorm:"column:upload_status;not null;default:'pending';index" json:"upload_status"`
	StickerID     *string    `gorm:"column:sticker_id" json:"sticker_id,omitempty"`
	ErrorCode     string     `gorm:"column:error_code" json:"error_code,omitempty"`
	ErrorMessage  string     `gorm:"column:error_message" json:"error_message,omitempty"`
	AttemptCount  int        `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	LastAttemptAt *time.Time `gorm:"column:last_attempt_at" json:"last_attempt_at,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (PackUpload) TableName() string { return "pack_upload" }

// ConsistencySnapshot is the lock-protected aggregate used as the sole
// publish gate. It is computed over pack_item and pack_upload inside the
// transaction that may flip Pack.Status.
type ConsistencySnapshot struct {
	StickerCount      int  `json:"sticker_count"`
	CoverSet          bool `json:"cover_set"`
	CoverValid        bool `json:"cover_valid"`
	PendingUploads    int  `json:"pending_uploads"`
	ProcessingUploads int  `json:"processing_uploads"`
	FailedUploads     int  `json:"failed_uploads"`
	DoneUploads       int  `json:"done_uploads"`
}
