package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stickerlab/packsmith-backend/internal/data/repos"
	types "github.com/stickerlab/packsmith-backend/internal/domain"
	"github.com/stickerlab/packsmith-backend/internal/platform/apierr"
	"github.com/stickerlab/packsmith-backend/internal/platform/dbctx"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

const (
	maxUploadIDLen    = 128
	maxLedgerErrorLen = 500
)

type IngestUploadInput struct {
	UploadID     string
	Content      []byte
	MimeType     string
	DeclaredHash string
	SetCover     bool
	Emoji        string
}

type IngestResult struct {
	StickerID    string `json:"sticker_id"`
	StickerCount int64  `json:"sticker_count"`
	Idempotent   bool   `json:"idempotent"`
	PackStatus   string `json:"pack_status"`
}

type FinalizeResult struct {
	Published bool                      `json:"published"`
	Reason    string                    `json:"reason,omitempty"`
	Snapshot  types.ConsistencySnapshot `json:"consistency_snapshot"`
}

type UploadView struct {
	UploadID     string `json:"upload_id"`
	StickerHash  string `json:"sticker_hash"`
	UploadStatus string `json:"upload_status"`
	StickerID    string `json:"sticker_id,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	AttemptCount int    `json:"attempt_count"`
}

type PublishStateView struct {
	Status   string                    `json:"status"`
	Snapshot types.ConsistencySnapshot `json:"consistency_snapshot"`
	Uploads  []UploadView              `json:"uploads"`
}

// PublishService owns the pack publish pipeline: idempotent upload ingestion
// against the upload ledger, the draft→uploading→processing→published state
// machine, and the lock-protected consistency snapshot that gates the
// visibility flip.
type PublishService interface {
	CreatePack(ctx context.Context, ownerID uuid.UUID, title string) (*types.Pack, error)
	IngestUpload(ctx context.Context, ownerID uuid.UUID, packKey string, in IngestUploadInput) (*IngestResult, error)
	Finalize(ctx context.Context, ownerID uuid.UUID, packKey string) (*FinalizeResult, error)
	PublishState(ctx context.Context, packKey string) (*PublishStateView, error)
}

type publishService struct {
	db      *gorm.DB
	log     *logger.Logger
	packs   repos.PackRepo
	items   repos.PackItemRepo
	uploads repos.PackUploadRepo
	media   MediaService
	assets  AssetStore
	outbox  OutboxService
	cache   PackStateCache
}

func NewPublishService(
	db *gorm.DB,
	baseLog *logger.Logger,
	packRepo repos.PackRepo,
	itemRepo repos.PackItemRepo,
	uploadRepo repos.PackUploadRepo,
	media MediaService,
	assets AssetStore,
	outbox OutboxService,
	cache PackStateCache,
) PublishService {
	return &publishService{
		db:      db,
		log:     baseLog.With("service", "PublishService"),
		packs:   packRepo,
		items:   itemRepo,
		uploads: uploadRepo,
		media:   media,
		assets:  assets,
		outbox:  outbox,
		cache:   cache,
	}
}

func (s *publishService) CreatePack(ctx context.Context, ownerID uuid.UUID, title string) (*types.Pack, error) {
	if ownerID == uuid.Nil {
		return nil, apierr.Unauthorized(fmt.Errorf("missing owner"))
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apierr.InvalidInput(fmt.Errorf("missing title"))
	}
	pack := &types.Pack{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		PackKey:     newPackKey(),
		Title:       title,
		Status:      types.PackStatusDraft,
	}
	if _, err := s.packs.Create(dbctx.Context{Ctx: ctx}, []*types.Pack{pack}); err != nil {
		return nil, fmt.Errorf("create pack: %w", err)
	}
	return pack, nil
}

// IngestUpload journals the attempt under the pack row lock, runs the slow
// conversion/storage call outside it, then re-locks to record the outcome.
// The ledger's two unique keys make any resubmission effect-free.
func (s *publishService) IngestUpload(ctx context.Context, ownerID uuid.UUID, packKey string, in IngestUploadInput) (*IngestResult, error) {
	in.UploadID = strings.TrimSpace(in.UploadID)
	if in.UploadID == "" || len(in.UploadID) > maxUploadIDLen {
		return nil, apierr.InvalidInput(fmt.Errorf("missing or malformed upload_id"))
	}
	if len(in.Content) == 0 {
		return nil, apierr.InvalidInput(fmt.Errorf("empty content"))
	}
	hash := contentHash(in.Content)
	if in.DeclaredHash != "" && !strings.EqualFold(in.DeclaredHash, hash) {
		return nil, apierr.InvalidInput(fmt.Errorf("declared_hash does not match content"))
	}

	// Phase 1: reserve the ledger slot under the pack lock.
	var (
		packID   uuid.UUID
		entryID  uuid.UUID
		shortcut *IngestResult
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		pack, err := s.packs.GetByKeyForUpdate(dbc, packKey)
		if err != nil {
			return err
		}
		if pack == nil {
			return apierr.NotFound(fmt.Errorf("pack %q not found", packKey))
		}
		if pack.OwnerUserID != ownerID {
			return apierr.NotAllowed(fmt.Errorf("pack %q is not editable by this user", packKey))
		}
		packID = pack.ID

		entry, err := s.lookupLedger(dbc, pack.ID, in.UploadID, hash)
		if err != nil {
			return err
		}
		if entry != nil && entry.UploadStatus == types.UploadStatusDone {
			// Authoritative short-circuit: same logical upload already
			// landed; report its result without reprocessing.
			count, err := s.items.CountByPack(dbc, pack.ID)
			if err != nil {
				return err
			}
			sid := ""
			if entry.StickerID != nil {
				sid = *entry.StickerID
			}
			shortcut = &IngestResult{
				StickerID:    sid,
				StickerCount: count,
				Idempotent:   true,
				PackStatus:   pack.Status,
			}
			return nil
		}
		if pack.Status == types.PackStatusPublished {
			return apierr.NotAllowed(fmt.Errorf("pack %q is published and frozen", packKey))
		}
		if pack.Status == types.PackStatusProcessing {
			return apierr.Conflict(fmt.Errorf("pack %q is finalizing; retry shortly", packKey))
		}

		now := time.Now().UTC()
		if entry == nil {
			entry = &types.PackUpload{
				ID:            uuid.New(),
				PackID:        pack.ID,
				UploadID:      in.UploadID,
				StickerHash:   hash,
				UploadStatus:  types.UploadStatusProcessing,
				AttemptCount:  1,
				LastAttemptAt: &now,
			}
			if err := s.uploads.Create(dbc, entry); err != nil {
				return err
			}
		} else {
			if err := s.uploads.UpdateFields(dbc, entry.ID, map[string]interface{}{
				"upload_status":   types.UploadStatusProcessing,
				"attempt_count":   gorm.Expr("attempt_count + 1"),
				"last_attempt_at": now,
				"error_code":      "",
				"error_message":   "",
			}); err != nil {
				return err
			}
		}
		entryID = entry.ID

		// A failed pack auto-clears as soon as a new upload lands.
		if pack.Status == types.PackStatusDraft || pack.Status == types.PackStatusFailed {
			if _, err := s.packs.TransitionStatus(dbc, pack.ID,
				[]string{types.PackStatusDraft, types.PackStatusFailed},
				types.PackStatusUploading, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if shortcut != nil {
		return shortcut, nil
	}
	defer s.cache.Invalidate(ctx, packID)

	// Phase 2: slow collaborators, outside any lock.
	stickerID, convErr := s.convertAndStore(ctx, ownerID, in)
	if convErr != nil {
		if err := s.recordUploadFailure(ctx, packID, entryID, convErr); err != nil {
			s.log.Error("Failed to record upload failure", "pack_id", packID, "upload_id", in.UploadID, "error", err)
		}
		return nil, convErr
	}

	// Phase 3: re-lock briefly to commit the outcome.
	var result *IngestResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		pack, err := s.packs.GetByKeyForUpdate(dbc, packKey)
		if err != nil {
			return err
		}
		if pack == nil {
			// Racing delete; the upload is simply gone with the pack.
			return apierr.NotFound(fmt.Errorf("pack %q vanished during upload", packKey))
		}

		existing, err := s.items.GetBySticker(dbc, packID, stickerID)
		if err != nil {
			return err
		}
		if existing == nil {
			pos, err := s.items.NextPosition(dbc, packID)
			if err != nil {
				return err
			}
			if err := s.items.Insert(dbc, &types.PackItem{
				ID:        uuid.New(),
				PackID:    packID,
				StickerID: stickerID,
				Position:  pos,
				Emoji:     in.Emoji,
			}); err != nil {
				return err
			}
		}
		if err := s.uploads.UpdateFields(dbc, entryID, map[string]interface{}{
			"upload_status": types.UploadStatusDone,
			"sticker_id":    stickerID,
			"error_code":    "",
			"error_message": "",
		}); err != nil {
			return err
		}
		// Cover assignment is opt-in; a pack with no cover stays that way
		// and bounces at finalize until the client picks one.
		if in.SetCover {
			if err := s.packs.UpdateFields(dbc, packID, map[string]interface{}{
				"cover_sticker_id": stickerID,
			}); err != nil {
				return err
			}
		}
		count, err := s.items.CountByPack(dbc, packID)
		if err != nil {
			return err
		}
		result = &IngestResult{
			StickerID:    stickerID,
			StickerCount: count,
			Idempotent:   false,
			// Status re-read under the phase-3 lock: a finalize may have
			// bounced or published the pack while conversion ran.
			PackStatus: pack.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Finalize computes the consistency snapshot under the pack row lock and
// either flips the pack to published or bounces it back to draft with the
// first violated condition as the reason.
func (s *publishService) Finalize(ctx context.Context, ownerID uuid.UUID, packKey string) (*FinalizeResult, error) {
	var (
		result *FinalizeResult
		packID uuid.UUID
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		pack, err := s.packs.GetByKeyForUpdate(dbc, packKey)
		if err != nil {
			return err
		}
		if pack == nil {
			return apierr.NotFound(fmt.Errorf("pack %q not found", packKey))
		}
		if pack.OwnerUserID != ownerID {
			return apierr.NotAllowed(fmt.Errorf("pack %q is not editable by this user", packKey))
		}
		packID = pack.ID

		snapshot, err := s.computeSnapshot(dbc, pack)
		if err != nil {
			return err
		}
		if pack.Status == types.PackStatusPublished {
			result = &FinalizeResult{Published: true, Snapshot: snapshot}
			return nil
		}

		// Transient lock-out state: new uploads bounce with "retry shortly"
		// while the snapshot decides, and a crash mid-finalize is visible as
		// a pack stuck in processing, which the recovery path below clears.
		if _, err := s.packs.TransitionStatus(dbc, pack.ID, nil, types.PackStatusProcessing, nil); err != nil {
			return err
		}

		ok, reason := EvaluateSnapshot(snapshot)
		if !ok {
			if _, err := s.packs.TransitionStatus(dbc, pack.ID,
				[]string{types.PackStatusProcessing}, types.PackStatusDraft, nil); err != nil {
				return err
			}
			result = &FinalizeResult{Published: false, Reason: reason, Snapshot: snapshot}
			return nil
		}

		now := time.Now().UTC()
		if _, err := s.packs.TransitionStatus(dbc, pack.ID,
			[]string{types.PackStatusProcessing}, types.PackStatusPublished,
			map[string]interface{}{"published_at": now}); err != nil {
			return err
		}
		// Enqueued in the same transaction: the publish and its announcement
		// commit or roll back together.
		if _, err := s.outbox.Enqueue(dbc, EnqueueInput{
			EventType:     EventPackPublished,
			AggregateType: "pack",
			AggregateID:   pack.ID,
			Payload: map[string]any{
				"pack_key":      pack.PackKey,
				"owner_user_id": pack.OwnerUserID.String(),
				"sticker_count": snapshot.StickerCount,
			},
			IdempotencyKey: "pack.published:" + pack.ID.String(),
		}); err != nil {
			return err
		}
		result = &FinalizeResult{Published: true, Snapshot: snapshot}
		return nil
	})
	if err != nil {
		var ae *apierr.Error
		if !errors.As(err, &ae) {
			// Unexpected failure: make sure the pack cannot stay stuck in
			// processing. Best effort, separate transaction.
			s.recoverStuckFinalize(ctx, packID, err)
		}
		// The pack may have moved (processing, or failed via recovery)
		// before the error surfaced; a stale cached view must not outlive
		// that.
		if packID != uuid.Nil {
			s.cache.Invalidate(ctx, packID)
		}
		return nil, err
	}
	s.cache.Invalidate(ctx, packID)
	return result, nil
}

func (s *publishService) PublishState(ctx context.Context, packKey string) (*PublishStateView, error) {
	dbc := dbctx.Context{Ctx: ctx}
	pack, err := s.packs.GetByKey(dbc, packKey)
	if err != nil {
		return nil, err
	}
	if pack == nil {
		return nil, apierr.NotFound(fmt.Errorf("pack %q not found", packKey))
	}
	if view, ok := s.cache.Get(ctx, pack.ID); ok {
		return view, nil
	}

	snapshot, err := s.computeSnapshot(dbc, pack)
	if err != nil {
		return nil, err
	}
	entries, err := s.uploads.ListByPack(dbc, pack.ID)
	if err != nil {
		return nil, err
	}
	view := &PublishStateView{
		Status:   pack.Status,
		Snapshot: snapshot,
		Uploads:  make([]UploadView, 0, len(entries)),
	}
	for _, e := range entries {
		uv := UploadView{
			UploadID:     e.UploadID,
			StickerHash:  e.StickerHash,
			UploadStatus: e.UploadStatus,
			ErrorCode:    e.ErrorCode,
			ErrorMessage: e.ErrorMessage,
			AttemptCount: e.AttemptCount,
		}
		if e.StickerID != nil {
			uv.StickerID = *e.StickerID
		}
		view.Uploads = append(view.Uploads, uv)
	}
	s.cache.Set(ctx, pack.ID, view)
	return view, nil
}

// lookupLedger resolves the authoritative ledger entry for an attempt. The
// upload id pins the logical attempt; the content hash pins the bytes. An
// upload id reused with different bytes is rejected outright.
func (s *publishService) lookupLedger(dbc dbctx.Context, packID uuid.UUID, uploadID, hash string) (*types.PackUpload, error) {
	entry, err := s.uploads.GetByUploadID(dbc, packID, uploadID)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		if entry.StickerHash != hash {
			return nil, apierr.InvalidInput(fmt.Errorf("upload_id %q was already used with different content", uploadID))
		}
		return entry, nil
	}
	return s.uploads.GetByHash(dbc, packID, hash)
}

func (s *publishService) convertAndStore(ctx context.Context, ownerID uuid.UUID, in IngestUploadInput) (string, error) {
	normalized, mime, err := s.media.Convert(in.Content, in.MimeType)
	if err != nil {
		return "", err
	}
	stickerID, err := s.assets.Store(ctx, ownerID, normalized, mime)
	if err != nil {
		return "", apierr.Transient(fmt.Errorf("store sticker: %w", err))
	}
	return stickerID, nil
}

// recordUploadFailure re-locks the pack, marks the ledger entry failed with a
// bounded message, and reverts the pack to draft so the user can retry. The
// original bytes are not retained, so there is no server-side auto-retry.
func (s *publishService) recordUploadFailure(ctx context.Context, packID, entryID uuid.UUID, cause error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		pack, err := s.packs.GetByID(dbc, packID)
		if err != nil {
			return err
		}
		if pack == nil {
			return nil
		}
		code := apierr.CodeInternal
		var ae *apierr.Error
		if errors.As(cause, &ae) {
			code = ae.Code
		}
		msg := cause.Error()
		if len(msg) > maxLedgerErrorLen {
			msg = msg[:maxLedgerErrorLen]
		}
		if err := s.uploads.UpdateFields(dbc, entryID, map[string]interface{}{
			"upload_status": types.UploadStatusFailed,
			"error_code":    code,
			"error_message": msg,
		}); err != nil {
			return err
		}
		_, err = s.packs.TransitionStatus(dbc, packID,
			[]string{types.PackStatusUploading}, types.PackStatusDraft, nil)
		return err
	})
}

// recoverStuckFinalize makes sure a crash mid-finalize never leaves the pack
// in processing. Runs in its own transaction after the main one failed.
func (s *publishService) recoverStuckFinalize(ctx context.Context, packID uuid.UUID, cause error) {
	if packID == uuid.Nil {
		return
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		moved, err := s.packs.TransitionStatus(dbc, packID,
			[]string{types.PackStatusProcessing}, types.PackStatusFailed, nil)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		_, err = s.outbox.Enqueue(dbc, EnqueueInput{
			EventType:     EventPackPublishFailed,
			AggregateType: "pack",
			AggregateID:   packID,
			Payload: map[string]any{
				"error": cause.Error(),
			},
			IdempotencyKey: "pack.publish_failed:" + packID.String(),
		})
		return err
	})
	if err != nil {
		s.log.Error("Failed to recover pack stuck in processing", "pack_id", packID, "error", err)
	}
}

func (s *publishService) computeSnapshot(dbc dbctx.Context, pack *types.Pack) (types.ConsistencySnapshot, error) {
	var snapshot types.ConsistencySnapshot
	count, err := s.items.CountByPack(dbc, pack.ID)
	if err != nil {
		return snapshot, err
	}
	counts, err := s.uploads.CountsByStatus(dbc, pack.ID)
	if err != nil {
		return snapshot, err
	}
	snapshot = types.ConsistencySnapshot{
		StickerCount:      int(count),
		PendingUploads:    int(counts.Pending),
		ProcessingUploads: int(counts.Processing),
		FailedUploads:     int(counts.Failed),
		DoneUploads:       int(counts.Done),
	}
	if pack.CoverStickerID != nil && *pack.CoverStickerID != "" {
		snapshot.CoverSet = true
		item, err := s.items.GetBySticker(dbc, pack.ID, *pack.CoverStickerID)
		if err != nil {
			return snapshot, err
		}
		snapshot.CoverValid = item != nil
	}
	return snapshot, nil
}

func contentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func newPackKey() string {
	return "pack_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
