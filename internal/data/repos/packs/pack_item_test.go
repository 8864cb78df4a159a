package packs_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/stickerlab/packsmith-backend/internal/data/repos/packs"
	"github.com/stickerlab/packsmith-backend/internal/data/repos/testutil"
	types "github.com/stickerlab/packsmith-backend/internal/domain"
	"github.com/stickerlab/packsmith-backend/internal/platform/dbctx"
)

func TestNextPositionAndDuplicateInsert(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := packs.NewPackItemRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	owner := testutil.SeedUser(t, ctx, tx, "owner-"+uuid.NewString())
	pack := testutil.SeedPack(t, ctx, tx, owner.ID, "key-"+uuid.NewString(), types.PackStatusUploading)

	pos, err := repo.NextPosition(dbc, pack.ID)
	if err != nil {
		t.Fatalf("next position empty: %v", err)
	}
	if pos != 1 {
		t.Fatalf("expected first position 1, got %d", pos)
	}

	testutil.SeedPackItem(t, ctx, tx, pack.ID, "sticker-a", 1)
	testutil.SeedPackItem(t, ctx, tx, pack.ID, "sticker-b", 2)

	pos, err = repo.NextPosition(dbc, pack.ID)
	if err != nil {
		t.Fatalf("next position: %v", err)
	}
	if pos != 3 {
		t.Fatalf("expected position 3, got %d", pos)
	}

	// Re-inserting an existing sticker is a no-op, not an error.
	if err := repo.Insert(dbc, &types.PackItem{
		ID:        uuid.New(),
		PackID:    pack.ID,
		StickerID: "sticker-a",
		Position:  3,
	}); err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	count, err := repo.CountByPack(dbc, pack.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected duplicate insert ignored, got %d items", count)
	}
}
