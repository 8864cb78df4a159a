package packs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/stickerlab/packsmith-backend/internal/domain"
	"github.com/stickerlab/packsmith-backend/internal/platform/dbctx"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

type PackRepo interface {
	Create(dbc dbctx.Context, packs []*types.Pack) ([]*types.Pack, error)
	GetByKey(dbc dbctx.Context, packKey string) (*types.Pack, error)
	GetByKeyForUpdate(dbc dbctx.Context, packKey string) (*types.Pack, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Pack, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, fromStatuses []string, toStatus string, extra map[string]interface{}) (bool, error)
}

type packRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPackRepo(db *gorm.DB, baseLog *logger.Logger) PackRepo {
	return &packRepo{
		db:  db,
		log: baseLog.With("repo", "PackRepo"),
	}
}

func (r *packRepo) Create(dbc dbctx.Context, packs []*types.Pack) ([]*types.Pack, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(packs) == 0 {
		return []*types.Pack{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&packs).Error; err != nil {
		return nil, err
	}
	return packs, nil
}

func (r *packRepo) GetByKey(dbc dbctx.Context, packKey string) (*types.Pack, error) {
	return r.getByKey(dbc, packKey, false)
}

// GetByKeyForUpdate row-locks the pack, serializing concurrent uploads and
// finalizes for it. Callers must hold an open transaction in dbc.Tx.
func (r *packRepo) GetByKeyForUpdate(dbc dbctx.Context, packKey string) (*types.Pack, error) {
	if dbc.Tx == nil {
		return nil, errors.New("GetByKeyForUpdate requires a transaction")
	}
	return r.getByKey(dbc, packKey, true)
}

func (r *packRepo) getByKey(dbc dbctx.Context, packKey string, lock bool) (*types.Pack, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if packKey == "" {
		return nil, nil
	}
	q := transaction.WithContext(dbc.Ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var pack types.Pack
	err := q.Where("pack_key = ?", packKey).First(&pack).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pack, nil
}

func (r *packRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Pack, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var pack types.Pack
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&pack).Error
	if err != nil {
		return nil, err
	}
	if pack.ID == uuid.Nil {
		return nil, nil
	}
	return &pack, nil
}

func (r *packRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Pack{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// TransitionStatus moves the pack to toStatus only when it is still in one of
// fromStatuses, bumping version so concurrent writers show up as zero rows
// affected instead of silently clobbering each other.
func (r *packRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, fromStatuses []string, toStatus string, extra map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || toStatus == "" {
		return false, nil
	}
	updates := map[string]interface{}{
		"status":     toStatus,
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.Pack{}).
		Where("id = ?", id)
	if len(fromStatuses) > 0 {
		q = q.Where("status IN ?", fromStatuses)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
