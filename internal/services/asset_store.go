package services

import (
	"context"

	"github.com/google/uuid"
)

// AssetStore is the content-addressed storage collaborator. The returned
// sticker id derives from the content hash, so storing identical bytes for
// the same owner yields the same id and deduplicates naturally.
type AssetStore interface {
	Store(ctx context.Context, ownerID uuid.UUID, data []byte, mimeType string) (string, error)
	PublicURL(stickerID string) string
}
