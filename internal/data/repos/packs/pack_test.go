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

func TestTransitionStatusGuardsOnFromStatuses(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := packs.NewPackRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	owner := testutil.SeedUser(t, ctx, tx, "owner-"+uuid.NewString())
	pack := testutil.SeedPack(t, ctx, tx, owner.ID, "key-"+uuid.NewString(), types.PackStatusDraft)

	moved, err := repo.TransitionStatus(dbc, pack.ID, []string{types.PackStatusDraft}, types.PackStatusUploading, nil)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !moved {
		t.Fatalf("expected draft→uploading to apply")
	}

	// Stale precondition: the pack is no longer draft.
	moved, err = repo.TransitionStatus(dbc, pack.ID, []string{types.PackStatusDraft}, types.PackStatusProcessing, nil)
	if err != nil {
		t.Fatalf("stale transition: %v", err)
	}
	if moved {
		t.Fatalf("expected stale transition to affect zero rows")
	}

	got, err := repo.GetByID(dbc, pack.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.PackStatusUploading {
		t.Fatalf("expected uploading, got %s", got.Status)
	}
	if got.Version != pack.Version+1 {
		t.Fatalf("expected version bumped once, got %d (was %d)", got.Version, pack.Version)
	}
}

func TestGetByKeyForUpdateRequiresTransaction(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := packs.NewPackRepo(tx, testutil.Logger(t))

	if _, err := repo.GetByKeyForUpdate(dbctx.Context{Ctx: context.Background()}, "whatever"); err == nil {
		t.Fatalf("expected an error when locking outside a transaction")
	}
}
