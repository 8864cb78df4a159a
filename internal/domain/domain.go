package domain

import (
	"github.com/stickerlab/packsmith-backend/internal/domain/outbox"
	"github.com/stickerlab/packsmith-backend/internal/domain/packs"
	"github.com/stickerlab/packsmith-backend/internal/domain/user"
)

type User = user.User

type OutboxEvent = outbox.OutboxEvent
type DeadLetterEvent = outbox.DeadLetterEvent

type Pack = packs.Pack
type PackItem = packs.PackItem
type PackUpload = packs.PackUpload
type ConsistencySnapshot = packs.ConsistencySnapshot

const (
	OutboxStatusPending    = outbox.StatusPending
	OutboxStatusProcessing = outbox.StatusProcessing
	OutboxStatusCompleted  = outbox.StatusCompleted
	OutboxStatusFailed     = outbox.StatusFailed

	PackStatusDraft      = packs.PackStatusDraft
	PackStatusUploading  = packs.PackStatusUploading
	PackStatusProcessing = packs.PackStatusProcessing
	PackStatusPublished  = packs.PackStatusPublished
	PackStatusFailed     = packs.PackStatusFailed

	UploadStatusPending    = packs.UploadStatusPending
	UploadStatusProcessing = packs.UploadStatusProcessing
	UploadStatusDone       = packs.UploadStatusDone
	UploadStatusFailed     = packs.UploadStatusFailed
)
