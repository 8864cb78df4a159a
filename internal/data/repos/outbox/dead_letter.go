package outbox

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/stickerlab/packsmith-backend/internal/domain"
	"github.com/stickerlab/packsmith-backend/internal/platform/dbctx"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

// DeadLetterRepo is read-side only: dead letters are written by
// OutboxEventRepo.Fail in the same transaction that turns the event terminal.
type DeadLetterRepo interface {
	GetByEventID(dbc dbctx.Context, eventID uuid.UUID) (*types.DeadLetterEvent, error)
	ListRecent(dbc dbctx.Context, limit int) ([]*types.DeadLetterEvent, error)
	CountAll(dbc dbctx.Context) (int64, error)
}

type deadLetterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDeadLetterRepo(db *gorm.DB, baseLog *logger.Logger) DeadLetterRepo {
	return &deadLetterRepo{
		db:  db,
		log: baseLog.With("repo", "DeadLetterRepo"),
	}
}

func (r *deadLetterRepo) GetByEventID(dbc dbctx.Context, eventID uuid.UUID) (*types.DeadLetterEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if eventID == uuid.Nil {
		return nil, nil
	}
	var dead types.DeadLetterEvent
	err := transaction.WithContext(dbc.Ctx).
		Where("event_id = ?", eventID).
		Limit(1).
		Find(&dead).Error
	if err != nil {
		return nil, err
	}
	if dead.ID == uuid.Nil {
		return nil, nil
	}
	return &dead, nil
}

func (r *deadLetterRepo) ListRecent(dbc dbctx.Context, limit int) ([]*types.DeadLetterEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var out []*types.DeadLetterEvent
	err := transaction.WithContext(dbc.Ctx).
		Order("dead_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *deadLetterRepo) CountAll(dbc dbctx.Context) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.DeadLetterEvent{}).
		Count(&count).Error
	return count, err
}
