package packs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/stickerlab/packsmith-backend/internal/domain"
	"github.com/stickerlab/packsmith-backend/internal/platform/dbctx"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

// StatusCounts aggregates the upload ledger for one pack; it feeds the
// consistency snapshot that gates publishing.
type StatusCounts struct {
	Pending    int64
	Processing int64
	Done       int64
	Failed     int64
}

type PackUploadRepo interface {
	Create(dbc dbctx.Context, entry *types.PackUpload) error
	GetByUploadID(dbc dbctx.Context, packID uuid.UUID, uploadID string) (*types.PackUpload, error)
	GetByHash(dbc dbctx.Context, packID uuid.UUID, stickerHash string) (*types.PackUpload, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	ListByPack(dbc dbctx.Context, packID uuid.UUID) ([]*types.PackUpload, error)
	CountsByStatus(dbc dbctx.Context, packID uuid.UUID) (StatusCounts, error)
}

type packUploadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPackUploadRepo(db *gorm.DB, baseLog *logger.Logger) PackUploadRepo {
	return &packUploadRepo{
		db:  db,
		log: baseLog.With("repo", "PackUploadRepo"),
	}
}

func (r *packUploadRepo) Create(dbc dbctx.Context, entry *types.PackUpload) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if entry == nil {
		return nil
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return transaction.WithContext(dbc.Ctx).Create(entry).Error
}

func (r *packUploadRepo) GetByUploadID(dbc dbctx.Context, packID uuid.UUID, uploadID string) (*types.PackUpload, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if packID == uuid.Nil || uploadID == "" {
		return nil, nil
	}
	var entry types.PackUpload
	err := transaction.WithContext(dbc.Ctx).
		Where("pack_id = ? AND upload_id = ?", packID, uploadID).
		Limit(1).
		Find(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == uuid.Nil {
		return nil, nil
	}
	return &entry, nil
}

func (r *packUploadRepo) GetByHash(dbc dbctx.Context, packID uuid.UUID, stickerHash string) (*types.PackUpload, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if packID == uuid.Nil || stickerHash == "" {
		return nil, nil
	}
	var entry types.PackUpload
	err := transaction.WithContext(dbc.Ctx).
		Where("pack_id = ? AND sticker_hash = ?", packID, stickerHash).
		Limit(1).
		Find(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == uuid.Nil {
		return nil, nil
	}
	return &entry, nil
}

func (r *packUploadRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.PackUpload{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *packUploadRepo) ListByPack(dbc dbctx.Context, packID uuid.UUID) ([]*types.PackUpload, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.PackUpload
	if packID == uuid.Nil {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Where("pack_id = ?", packID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *packUploadRepo) CountsByStatus(dbc dbctx.Context, packID uuid.UUID) (StatusCounts, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var counts StatusCounts
	if packID == uuid.Nil {
		return counts, nil
	}
	rows := []struct {
		UploadStatus string
		N            int64
	}{}
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.PackUpload{}).
		Select("upload_status, COUNT(*) AS n").
		Where("pack_id = ?", packID).
		Group("upload_status").
		Scan(&rows).Error
	if err != nil {
		return counts, err
	}
	for _, row := range rows {
		switch row.UploadStatus {
		case types.UploadStatusPending:
			counts.Pending = row.N
		case types.UploadStatusProcessing:
			counts.Processing = row.N
		case types.UploadStatusDone:
			counts.Done = row.N
		case types.UploadStatusFailed:
			counts.Failed = row.N
		}
	}
	return counts, nil
}
