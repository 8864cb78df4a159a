package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	types "github.com/stickerlab/packsmith-backend/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, handle string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:     uuid.New(),
		Handle: handle,
		ChatID: 100,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedPack(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, packKey, status string) *types.Pack {
	tb.Helper()
	p := &types.Pack{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		PackKey:     packKey,
		Title:       "pack " + packKey,
		Status:      status,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed pack: %v", err)
	}
	return p
}

func SeedPackItem(tb testing.TB, ctx context.Context, tx *gorm.DB, packID uuid.UUID, stickerID string, position int) *types.PackItem {
	tb.Helper()
	it := &types.PackItem{
		ID:        uuid.New(),
		PackID:    packID,
		StickerID: stickerID,
		Position:  position,
	}
	if err := tx.WithContext(ctx).Create(it).Error; err != nil {
		tb.Fatalf("seed pack item: %v", err)
	}
	return it
}

func SeedUpload(tb testing.TB, ctx context.Context, tx *gorm.DB, packID uuid.UUID, uploadID, status string) *types.PackUpload {
	tb.Helper()
	now := time.Now().UTC()
	entry := &types.PackUpload{
		ID:            uuid.New(),
		PackID:        packID,
		UploadID:      uploadID,
		StickerHash:   HashOf([]byte(uploadID)),
		UploadStatus:  status,
		AttemptCount:  1,
		LastAttemptAt: &now,
	}
	if status == types.UploadStatusDone {
		sid := "sticker-" + uploadID
		entry.StickerID = &sid
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		tb.Fatalf("seed upload: %v", err)
	}
	return entry
}

func SeedOutboxEvent(tb testing.TB, ctx context.Context, tx *gorm.DB, eventType, status string, attempts, maxAttempts int) *types.OutboxEvent {
	tb.Helper()
	now := time.Now().UTC()
	evt := &types.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: "pack",
		AggregateID:   uuid.New(),
		Payload:       datatypes.JSON([]byte(`{}`)),
		Status:        status,
		AvailableAt:   now.Add(-time.Minute),
		Attempts:      attempts,
		MaxAttempts:   maxAttempts,
		CreatedAt:     now.Add(-time.Minute),
		UpdatedAt:     now.Add(-time.Minute),
	}
	if err := tx.WithContext(ctx).Create(evt).Error; err != nil {
		tb.Fatalf("seed outbox event: %v", err)
	}
	return evt
}

func HashOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
