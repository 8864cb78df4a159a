package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/stickerlab/packsmith-backend/internal/domain"
	"github.com/stickerlab/packsmith-backend/internal/platform/dbctx"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

func TestBackoffForDoublesAndCaps(t *testing.T) {
	w := NewOutboxWorker(testLogger(t), nil, OutboxWorkerConfig{
		BackoffBase: 5 * time.Second,
		BackoffCap:  time.Minute,
	})

	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, time.Minute},
		{50, time.Minute},
	}
	for _, tc := range cases {
		if got := w.backoffFor(tc.attempts); got != tc.want {
			t.Fatalf("backoffFor(%d) = %s, want %s", tc.attempts, got, tc.want)
		}
	}
}

// fakeOutboxService hands out a fixed queue of events and records the
// bookkeeping calls the worker makes.
type fakeOutboxService struct {
	mu        sync.Mutex
	queue     []*types.OutboxEvent
	completed []uuid.UUID
	failed    []uuid.UUID
	delays    []time.Duration
}

func (f *fakeOutboxService) Enqueue(dbc dbctx.Context, in EnqueueInput) (*types.OutboxEvent, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeOutboxService) Claim(ctx context.Context, workerToken uuid.UUID, eventTypes []string, allowRetryFailed bool) (*types.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, nil
	}
	evt := f.queue[0]
	f.queue = f.queue[1:]
	evt.Attempts++
	return evt, nil
}

func (f *fakeOutboxService) Complete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeOutboxService) Fail(ctx context.Context, id uuid.UUID, failure error, retryDelay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
	f.delays = append(f.delays, retryDelay)
	return nil
}

func (f *fakeOutboxService) CountByStatus(ctx context.Context, status string) (int64, error) {
	return 0, nil
}

func testEvent(eventType string) *types.OutboxEvent {
	return &types.OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		Payload:     datatypes.JSON([]byte(`{}`)),
		Status:      types.OutboxStatusPending,
		MaxAttempts: 5,
	}
}

func TestWorkerCompletesHandledEvents(t *testing.T) {
	ok := testEvent("unit.ok")
	fake := &fakeOutboxService{queue: []*types.OutboxEvent{ok}}

	handled := make(chan uuid.UUID, 1)
	w := NewOutboxWorker(testLogger(t), fake, OutboxWorkerConfig{
		Workers:      1,
		PollInterval: 5 * time.Millisecond,
	})
	w.Register("unit.ok", func(ctx context.Context, evt *types.OutboxEvent) error {
		handled <- evt.ID
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	select {
	case id := <-handled:
		if id != ok.ID {
			t.Fatalf("handled wrong event %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler was never invoked")
	}

	waitFor(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.completed) == 1 && fake.completed[0] == ok.ID
	})
}

func TestWorkerFailsOnHandlerErrorAndPanic(t *testing.T) {
	failing := testEvent("unit.fail")
	failing.Attempts = 2 // third attempt after claim
	panicking := testEvent("unit.panic")
	fake := &fakeOutboxService{queue: []*types.OutboxEvent{failing, panicking}}

	w := NewOutboxWorker(testLogger(t), fake, OutboxWorkerConfig{
		Workers:      1,
		PollInterval: 5 * time.Millisecond,
		BackoffBase:  time.Second,
		BackoffCap:   time.Minute,
	})
	w.Register("unit.fail", func(ctx context.Context, evt *types.OutboxEvent) error {
		return fmt.Errorf("handler says no")
	})
	w.Register("unit.panic", func(ctx context.Context, evt *types.OutboxEvent) error {
		panic("handler exploded")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	waitFor(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.failed) == 2
	})

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.completed) != 0 {
		t.Fatalf("failing handlers must not complete events")
	}
	// failing was claimed at attempt 3: base * 2^2.
	if fake.delays[0] != 4*time.Second {
		t.Fatalf("expected 4s backoff for third attempt, got %s", fake.delays[0])
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}
