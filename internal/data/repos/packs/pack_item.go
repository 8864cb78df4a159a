package packs

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/stickerlab/packsmith-backend/internal/domain"
	"github.com/stickerlab/packsmith-backend/internal/platform/dbctx"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

type PackItemRepo interface {
	Insert(dbc dbctx.Context, item *types.PackItem) error
	GetBySticker(dbc dbctx.Context, packID uuid.UUID, stickerID string) (*types.PackItem, error)
	ListByPack(dbc dbctx.Context, packID uuid.UUID) ([]*types.PackItem, error)
	CountByPack(dbc dbctx.Context, packID uuid.UUID) (int64, error)
	NextPosition(dbc dbctx.Context, packID uuid.UUID) (int, error)
}

type packItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPackItemRepo(db *gorm.DB, baseLog *logger.Logger) PackItemRepo {
	return &packItemRepo{
		db:  db,
		log: baseLog.With("repo", "PackItemRepo"),
	}
}

// Insert is a no-op when the (pack, sticker) pair already exists, so a retry
// that re-runs the post-conversion bookkeeping never duplicates an item.
func (r *packItemRepo) Insert(dbc dbctx.Context, item *types.PackItem) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if item == nil {
		return errors.New("nil pack item")
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pack_id"}, {Name: "sticker_id"}},
			DoNothing: true,
		}).
		Create(item).Error
}

func (r *packItemRepo) GetBySticker(dbc dbctx.Context, packID uuid.UUID, stickerID string) (*types.PackItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if packID == uuid.Nil || stickerID == "" {
		return nil, nil
	}
	var item types.PackItem
	err := transaction.WithContext(dbc.Ctx).
		Where("pack_id = ? AND sticker_id = ?", packID, stickerID).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == uuid.Nil {
		return nil, nil
	}
	return &item, nil
}

func (r *packItemRepo) ListByPack(dbc dbctx.Context, packID uuid.UUID) ([]*types.PackItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.PackItem
	if packID == uuid.Nil {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Where("pack_id = ?", packID).
		Order("position ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *packItemRepo) CountByPack(dbc dbctx.Context, packID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.PackItem{}).
		Where("pack_id = ?", packID).
		Count(&count).Error
	return count, err
}

// NextPosition returns MAX(position)+1 for the pack. Only meaningful while
// the caller holds the pack row lock, which is how every writer uses it.
func (r *packItemRepo) NextPosition(dbc dbctx.Context, packID uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var maxPos *int
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.PackItem{}).
		Where("pack_id = ?", packID).
		Select("MAX(position)").
		Scan(&maxPos).Error
	if err != nil {
		return 0, err
	}
	if maxPos == nil {
		return 1, nil
	}
	return *maxPos + 1, nil
}
