package services

import (
	types "github.com/stickerlab/packsmith-backend/internal/domain"
)

// Bounce reasons returned by finalize when the pack is not ready. These are
// normal results, not errors; precedence is fixed so clients always see the
// most actionable blocker first.
const (
	ReasonUploadsFailed     = "uploads_failed"
	ReasonUploadsProcessing = "uploads_processing"
	ReasonUploadsPending    = "uploads_pending"
	ReasonCoverMissing      = "cover_missing"
	ReasonNotEnoughStickers = "not_enough_stickers"
	ReasonUnknown           = "unknown"
)

// EvaluateSnapshot applies the publish predicate: at least one sticker, no
// pending/processing/failed uploads, and a cover that is set and present
// among the pack's items. The returned reason is the first violated
// condition in precedence order, or empty when publishable.
func EvaluateSnapshot(s types.ConsistencySnapshot) (bool, string) {
	switch {
	case s.FailedUploads > 0:
		return false, ReasonUploadsFailed
	case s.ProcessingUploads > 0:
		return false, ReasonUploadsProcessing
	case s.PendingUploads > 0:
		return false, ReasonUploadsPending
	case !s.CoverSet || !s.CoverValid:
		return false, ReasonCoverMissing
	case s.StickerCount < 1:
		return false, ReasonNotEnoughStickers
	}
	return true, ""
}
