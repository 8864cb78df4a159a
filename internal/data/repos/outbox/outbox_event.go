package outbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/stickerlab/packsmith-backend/internal/domain"
	"github.com/stickerlab/packsmith-backend/internal/platform/dbctx"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

// maxStoredErrorLen bounds last_error so a pathological handler error cannot
// bloat the row.
const maxStoredErrorLen = 2000

type OutboxEventRepo interface {
	Enqueue(dbc dbctx.Context, evt *types.OutboxEvent) (*types.OutboxEvent, error)
	ClaimNext(dbc dbctx.Context, workerToken uuid.UUID, eventTypes []string, allowRetryFailed bool, leaseTTL time.Duration) (*types.OutboxEvent, error)
	Complete(dbc dbctx.Context, id uuid.UUID) error
	Fail(dbc dbctx.Context, id uuid.UUID, failure error, retryDelay time.Duration) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.OutboxEvent, error)
	CountByStatus(dbc dbctx.Context, status string) (int64, error)
}

type outboxEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutboxEventRepo(db *gorm.DB, baseLog *logger.Logger) OutboxEventRepo {
	return &outboxEventRepo{
		db:  db,
		log: baseLog.With("repo", "OutboxEventRepo"),
	}
}

// Enqueue inserts a pending event. A duplicate idempotency_key coalesces with
// the existing row instead of duplicating it: priority is raised to the max
// of the two and available_at lowered to the earlier.
func (r *outboxEventRepo) Enqueue(dbc dbctx.Context, evt *types.OutboxEvent) (*types.OutboxEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if evt == nil {
		return nil, fmt.Errorf("nil event")
	}
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	now := time.Now().UTC()
	if evt.AvailableAt.IsZero() {
		evt.AvailableAt = now
	}
	if evt.MaxAttempts <= 0 {
		evt.MaxAttempts = 5
	}
	evt.Status = types.OutboxStatusPending
	evt.CreatedAt = now
	evt.UpdatedAt = now

	if evt.IdempotencyKey == nil || *evt.IdempotencyKey == "" {
		evt.IdempotencyKey = nil
		if err := transaction.WithContext(dbc.Ctx).Create(evt).Error; err != nil {
			return nil, err
		}
		return evt, nil
	}

	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "idempotency_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"priority":     gorm.Expr(`GREATEST("outbox_event"."priority", EXCLUDED."priority")`),
				"available_at": gorm.Expr(`LEAST("outbox_event"."available_at", EXCLUDED."available_at")`),
				"updated_at":   now,
			}),
		}).
		Create(evt).Error
	if err != nil {
		return nil, err
	}

	// The insert may have coalesced into an existing row; re-read by key so
	// the caller always sees the canonical event.
	var out types.OutboxEvent
	if err := transaction.WithContext(dbc.Ctx).
		Where("idempotency_key = ?", *evt.IdempotencyKey).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// ClaimNext atomically selects one eligible event and marks it processing
// under a fresh lease. Eligible rows are pending-and-available, failed with
// retry budget left (when allowed), and processing rows whose lease expired —
// the crashed-worker reclaim path. SELECT ... FOR UPDATE SKIP LOCKED plus the
// update run inside one transaction so two workers can never observe "pick"
// and "mark mine" separately.
func (r *outboxEventRepo) ClaimNext(dbc dbctx.Context, workerToken uuid.UUID, eventTypes []string, allowRetryFailed bool, leaseTTL time.Duration) (*types.OutboxEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if workerToken == uuid.Nil {
		return nil, fmt.Errorf("missing worker token")
	}
	now := time.Now().UTC()
	leaseCutoff := now.Add(-leaseTTL)

	var claimed *types.OutboxEvent
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var evt types.OutboxEvent
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          (status = ? AND available_at <= ?)
          OR (? AND status = ? AND attempts < max_attempts)
          OR (status = ? AND locked_at IS NOT NULL AND locked_at < ?)
        )
      `, types.OutboxStatusPending, now,
				allowRetryFailed, types.OutboxStatusFailed,
				types.OutboxStatusProcessing, leaseCutoff).
			Order("priority DESC, available_at ASC, created_at ASC, id ASC")
		if len(eventTypes) > 0 {
			q = q.Where("event_type IN ?", eventTypes)
		}
		qErr := q.First(&evt).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.OutboxEvent{}).
			Where("id = ?", evt.ID).
			Updates(map[string]interface{}{
				"status":       types.OutboxStatusProcessing,
				"attempts":     gorm.Expr("attempts + 1"),
				"worker_token": workerToken,
				"locked_at":    now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		evt.Status = types.OutboxStatusProcessing
		evt.Attempts++
		evt.WorkerToken = &workerToken
		evt.LockedAt = &now
		claimed = &evt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Complete marks an event done and releases its lease. Safe to repeat:
// completed rows stay completed and terminal-failed rows are left alone.
func (r *outboxEventRepo) Complete(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return transaction.WithContext(dbc.Ctx).
		Model(&types.OutboxEvent{}).
		Where("id = ? AND status IN ?", id, []string{types.OutboxStatusPending, types.OutboxStatusProcessing}).
		Updates(map[string]interface{}{
			"status":       types.OutboxStatusCompleted,
			"worker_token": nil,
			"locked_at":    nil,
			"updated_at":   now,
		}).Error
}

// Fail records a handler failure. With retry budget left the event goes back
// to pending gated by available_at; once attempts are exhausted it turns
// terminal-failed and a dead-letter row is upserted keyed by the event id, so
// repeated Fail calls update rather than duplicate it.
func (r *outboxEventRepo) Fail(dbc dbctx.Context, id uuid.UUID, failure error, retryDelay time.Duration) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	msg := truncateError(failure)
	now := time.Now().UTC()

	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var evt types.OutboxEvent
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&evt).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		if evt.Status == types.OutboxStatusCompleted {
			return nil
		}

		if evt.Attempts >= evt.MaxAttempts || evt.Status == types.OutboxStatusFailed {
			if err := txx.Model(&types.OutboxEvent{}).
				Where("id = ?", evt.ID).
				Updates(map[string]interface{}{
					"status":       types.OutboxStatusFailed,
					"last_error":   msg,
					"worker_token": nil,
					"locked_at":    nil,
					"updated_at":   now,
				}).Error; err != nil {
				return err
			}
			dead := &types.DeadLetterEvent{
				ID:            uuid.New(),
				EventID:       evt.ID,
				EventType:     evt.EventType,
				AggregateType: evt.AggregateType,
				AggregateID:   evt.AggregateID,
				Payload:       evt.Payload,
				Attempts:      evt.Attempts,
				LastError:     msg,
				DeadAt:        now,
			}
			return txx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "event_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"attempts":   evt.Attempts,
					"last_error": msg,
					"dead_at":    now,
				}),
			}).Create(dead).Error
		}

		return txx.Model(&types.OutboxEvent{}).
			Where("id = ?", evt.ID).
			Updates(map[string]interface{}{
				"status":       types.OutboxStatusPending,
				"available_at": now.Add(retryDelay),
				"last_error":   msg,
				"worker_token": nil,
				"locked_at":    nil,
				"updated_at":   now,
			}).Error
	})
}

func (r *outboxEventRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.OutboxEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var evt types.OutboxEvent
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&evt).Error
	if err != nil {
		return nil, err
	}
	if evt.ID == uuid.Nil {
		return nil, nil
	}
	return &evt, nil
}

func (r *outboxEventRepo) CountByStatus(dbc dbctx.Context, status string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.OutboxEvent{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxStoredErrorLen {
		msg = msg[:maxStoredErrorLen]
	}
	return msg
}
