package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	types "github.com/stickerlab/packsmith-backend/internal/domain"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

// OutboxHandler processes one claimed event. Handlers are invoked
// at-least-once and must be idempotent.
type OutboxHandler func(ctx context.Context, evt *types.OutboxEvent) error

type OutboxWorkerConfig struct {
	Workers      int
	PollInterval time.Duration
	BackoffBase  time.Duration
	BackoffCap   time.Duration
}

// OutboxWorker drains the outbox with a pool of polling goroutines. Each
// worker claims under its own token so lease ownership stays auditable after
// a crash.
type OutboxWorker struct {
	log      *logger.Logger
	svc      OutboxService
	cfg      OutboxWorkerConfig
	handlers map[string]OutboxHandler
}

func NewOutboxWorker(baseLog *logger.Logger, svc OutboxService, cfg OutboxWorkerConfig) *OutboxWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 10 * time.Minute
	}
	return &OutboxWorker{
		log:      baseLog.With("service", "OutboxWorker"),
		svc:      svc,
		cfg:      cfg,
		handlers: map[string]OutboxHandler{},
	}
}

// Register binds a handler to an event type. Must be called before Start;
// workers only claim event types they can handle.
func (w *OutboxWorker) Register(eventType string, h OutboxHandler) {
	if eventType == "" || h == nil {
		return
	}
	w.handlers[eventType] = h
}

func (w *OutboxWorker) Start(ctx context.Context) {
	if len(w.handlers) == 0 {
		w.log.Warn("No outbox handlers registered; worker not started")
		return
	}
	eventTypes := w.registeredTypes()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Workers; i++ {
		g.Go(func() error {
			w.runLoop(gctx, eventTypes)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		w.log.Info("Outbox worker pool stopped")
	}()
	w.log.Info("Outbox worker pool started", "workers", w.cfg.Workers, "event_types", eventTypes)
}

func (w *OutboxWorker) runLoop(ctx context.Context, eventTypes []string) {
	token := uuid.New()
	log := w.log.With("worker_token", token.String())
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for {
			evt, err := w.svc.Claim(ctx, token, eventTypes, true)
			if err != nil {
				log.Error("Outbox claim failed", "error", err)
				break
			}
			if evt == nil {
				break
			}
			w.process(ctx, log, evt)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (w *OutboxWorker) process(ctx context.Context, log *logger.Logger, evt *types.OutboxEvent) {
	handler := w.handlers[evt.EventType]
	if handler == nil {
		// Should not happen: claims are filtered by registered types.
		_ = w.svc.Fail(ctx, evt.ID, fmt.Errorf("no handler for event type %q", evt.EventType), w.backoffFor(evt.Attempts))
		return
	}
	err := safeHandle(ctx, handler, evt)
	if err != nil {
		delay := w.backoffFor(evt.Attempts)
		log.Warn("Outbox handler failed", "event_id", evt.ID, "event_type", evt.EventType, "attempt", evt.Attempts, "retry_in", delay, "error", err)
		if ferr := w.svc.Fail(ctx, evt.ID, err, delay); ferr != nil {
			log.Error("Outbox fail bookkeeping failed", "event_id", evt.ID, "error", ferr)
		}
		return
	}
	if cerr := w.svc.Complete(ctx, evt.ID); cerr != nil {
		log.Error("Outbox complete bookkeeping failed", "event_id", evt.ID, "error", cerr)
		return
	}
	log.Debug("Outbox event completed", "event_id", evt.ID, "event_type", evt.EventType)
}

func safeHandle(ctx context.Context, handler OutboxHandler, evt *types.OutboxEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, evt)
}

// backoffFor doubles the delay per attempt, capped. attempts is the count
// after the failed claim, so the first retry waits one base interval.
func (w *OutboxWorker) backoffFor(attempts int) time.Duration {
	delay := w.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= w.cfg.BackoffCap {
			return w.cfg.BackoffCap
		}
	}
	if delay > w.cfg.BackoffCap {
		delay = w.cfg.BackoffCap
	}
	return delay
}

func (w *OutboxWorker) registeredTypes() []string {
	out := make([]string, 0, len(w.handlers))
	for t := range w.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
