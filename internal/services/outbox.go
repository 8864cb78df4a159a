package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/stickerlab/packsmith-backend/internal/data/repos"
	types "github.com/stickerlab/packsmith-backend/internal/domain"
	"github.com/stickerlab/packsmith-backend/internal/platform/dbctx"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

const (
	EventPackPublished     = "pack.published"
	EventPackPublishFailed = "pack.publish_failed"
)

const (
	DefaultOutboxMaxAttempts = 5
	DefaultOutboxLeaseTTL    = 2 * time.Minute
)

// EnqueueInput describes one durable side effect. Enqueue with the producer's
// open transaction in dbc.Tx so the event commits or rolls back atomically
// with the state change that caused it.
type EnqueueInput struct {
	EventType      string
	AggregateType  string
	AggregateID    uuid.UUID
	Payload        map[string]any
	Priority       int
	IdempotencyKey string
	Delay          time.Duration
	MaxAttempts    int
}

// OutboxService is the in-process at-least-once delivery primitive. It is not
// network-exposed; producers call Enqueue and the worker pool drains claims.
type OutboxService interface {
	Enqueue(dbc dbctx.Context, in EnqueueInput) (*types.OutboxEvent, error)
	Claim(ctx context.Context, workerToken uuid.UUID, eventTypes []string, allowRetryFailed bool) (*types.OutboxEvent, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, failure error, retryDelay time.Duration) error
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type outboxService struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.OutboxEventRepo
	leaseTTL time.Duration
}

func NewOutboxService(db *gorm.DB, baseLog *logger.Logger, repo repos.OutboxEventRepo, leaseTTL time.Duration) OutboxService {
	if leaseTTL <= 0 {
		leaseTTL = DefaultOutboxLeaseTTL
	}
	return &outboxService{
		db:       db,
		log:      baseLog.With("service", "OutboxService"),
		repo:     repo,
		leaseTTL: leaseTTL,
	}
}

func (s *outboxService) Enqueue(dbc dbctx.Context, in EnqueueInput) (*types.OutboxEvent, error) {
	if in.EventType == "" {
		return nil, fmt.Errorf("missing event_type")
	}
	if in.Payload == nil {
		in.Payload = map[string]any{}
	}
	b, err := json.Marshal(in.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	maxAttempts := in.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultOutboxMaxAttempts
	}
	now := time.Now().UTC()
	evt := &types.OutboxEvent{
		ID:            uuid.New(),
		EventType:     in.EventType,
		AggregateType: in.AggregateType,
		AggregateID:   in.AggregateID,
		Payload:       datatypes.JSON(b),
		Priority:      in.Priority,
		AvailableAt:   now.Add(in.Delay),
		MaxAttempts:   maxAttempts,
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		evt.IdempotencyKey = &key
	}
	out, err := s.repo.Enqueue(dbc, evt)
	if err != nil {
		return nil, fmt.Errorf("enqueue outbox event: %w", err)
	}
	s.log.Debug("Enqueued outbox event", "event_id", out.ID, "event_type", out.EventType, "priority", out.Priority)
	return out, nil
}

func (s *outboxService) Claim(ctx context.Context, workerToken uuid.UUID, eventTypes []string, allowRetryFailed bool) (*types.OutboxEvent, error) {
	return s.repo.ClaimNext(dbctx.Context{Ctx: ctx}, workerToken, eventTypes, allowRetryFailed, s.leaseTTL)
}

func (s *outboxService) Complete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Complete(dbctx.Context{Ctx: ctx}, id)
}

func (s *outboxService) Fail(ctx context.Context, id uuid.UUID, failure error, retryDelay time.Duration) error {
	return s.repo.Fail(dbctx.Context{Ctx: ctx}, id, failure, retryDelay)
}

func (s *outboxService) CountByStatus(ctx context.Context, status string) (int64, error) {
	return s.repo.CountByStatus(dbctx.Context{Ctx: ctx}, status)
}
