package outbox_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stickerlab/packsmith-backend/internal/data/repos/outbox"
	"github.com/stickerlab/packsmith-backend/internal/data/repos/testutil"
	types "github.com/stickerlab/packsmith-backend/internal/domain"
	"github.com/stickerlab/packsmith-backend/internal/platform/dbctx"
)

func TestEnqueueCoalescesOnIdempotencyKey(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := outbox.NewOutboxEventRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	key := "coalesce:" + uuid.NewString()
	early := time.Now().UTC().Add(-time.Minute)
	late := time.Now().UTC().Add(time.Hour)

	first, err := repo.Enqueue(dbc, &types.OutboxEvent{
		EventType:      "test.coalesce",
		AggregateType:  "pack",
		AggregateID:    uuid.New(),
		Priority:       1,
		AvailableAt:    late,
		IdempotencyKey: &key,
	})
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	second, err := repo.Enqueue(dbc, &types.OutboxEvent{
		EventType:      "test.coalesce",
		AggregateType:  "pack",
		AggregateID:    uuid.New(),
		Priority:       5,
		AvailableAt:    early,
		IdempotencyKey: &key,
	})
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected coalesced row, got two ids %s and %s", first.ID, second.ID)
	}
	if second.Priority != 5 {
		t.Fatalf("expected priority raised to 5, got %d", second.Priority)
	}
	if !second.AvailableAt.Before(late) {
		t.Fatalf("expected available_at lowered, got %s", second.AvailableAt)
	}

	var count int64
	if err := tx.Model(&types.OutboxEvent{}).Where("idempotency_key = ?", key).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single row for the key, got %d", count)
	}
}

func TestClaimNextOrderingAndEligibility(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := outbox.NewOutboxEventRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	eventType := "test.order." + uuid.NewString()

	low := testutil.SeedOutboxEvent(t, ctx, tx, eventType, types.OutboxStatusPending, 0, 5)
	high := testutil.SeedOutboxEvent(t, ctx, tx, eventType, types.OutboxStatusPending, 0, 5)
	if err := tx.Model(high).Update("priority", 10).Error; err != nil {
		t.Fatalf("bump priority: %v", err)
	}
	future := testutil.SeedOutboxEvent(t, ctx, tx, eventType, types.OutboxStatusPending, 0, 5)
	if err := tx.Model(future).Update("available_at", time.Now().UTC().Add(time.Hour)).Error; err != nil {
		t.Fatalf("push available_at: %v", err)
	}
	testutil.SeedOutboxEvent(t, ctx, tx, eventType, types.OutboxStatusCompleted, 1, 5)

	token := uuid.New()
	got1, err := repo.ClaimNext(dbc, token, []string{eventType}, false, time.Minute)
	if err != nil {
		t.Fatalf("claim 1: %v", err)
	}
	if got1 == nil || got1.ID != high.ID {
		t.Fatalf("expected high-priority event first, got %+v", got1)
	}
	if got1.Status != types.OutboxStatusProcessing || got1.Attempts != 1 {
		t.Fatalf("claim must mark processing and bump attempts, got %s/%d", got1.Status, got1.Attempts)
	}

	got2, err := repo.ClaimNext(dbc, token, []string{eventType}, false, time.Minute)
	if err != nil {
		t.Fatalf("claim 2: %v", err)
	}
	if got2 == nil || got2.ID != low.ID {
		t.Fatalf("expected remaining pending event, got %+v", got2)
	}

	got3, err := repo.ClaimNext(dbc, token, []string{eventType}, false, time.Minute)
	if err != nil {
		t.Fatalf("claim 3: %v", err)
	}
	if got3 != nil {
		t.Fatalf("future and completed events must not be claimable, got %+v", got3)
	}
}

func TestClaimReclaimsExpiredLease(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := outbox.NewOutboxEventRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	eventType := "test.lease." + uuid.NewString()

	crashedToken := uuid.New()
	evt := testutil.SeedOutboxEvent(t, ctx, tx, eventType, types.OutboxStatusProcessing, 1, 5)
	if err := tx.Model(evt).Updates(map[string]interface{}{
		"worker_token": crashedToken,
		"locked_at":    time.Now().UTC().Add(-10 * time.Minute),
	}).Error; err != nil {
		t.Fatalf("seed lease: %v", err)
	}

	// Live lease: a short cutoff in the future keeps it invisible.
	fresh, err := repo.ClaimNext(dbc, uuid.New(), []string{eventType}, false, time.Hour)
	if err != nil {
		t.Fatalf("claim with live lease: %v", err)
	}
	if fresh != nil {
		t.Fatalf("event with unexpired lease must not be reclaimed, got %+v", fresh)
	}

	newToken := uuid.New()
	reclaimed, err := repo.ClaimNext(dbc, newToken, []string{eventType}, false, time.Minute)
	if err != nil {
		t.Fatalf("claim with expired lease: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != evt.ID {
		t.Fatalf("expected expired-lease event to be reclaimed, got %+v", reclaimed)
	}
	if reclaimed.WorkerToken == nil || *reclaimed.WorkerToken != newToken {
		t.Fatalf("expected lease transferred to the new worker")
	}
	if reclaimed.Attempts != 2 {
		t.Fatalf("expected attempts bumped to 2, got %d", reclaimed.Attempts)
	}
}

func TestCompleteIsIdempotentAndTerminal(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := outbox.NewOutboxEventRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	eventType := "test.complete." + uuid.NewString()

	evt := testutil.SeedOutboxEvent(t, ctx, tx, eventType, types.OutboxStatusPending, 0, 5)
	claimed, err := repo.ClaimNext(dbc, uuid.New(), []string{eventType}, false, time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %+v", err, claimed)
	}

	for i := 0; i < 2; i++ {
		if err := repo.Complete(dbc, evt.ID); err != nil {
			t.Fatalf("complete #%d: %v", i+1, err)
		}
	}
	// A late Fail from a worker that lost the race must not resurrect it.
	if err := repo.Fail(dbc, evt.ID, fmt.Errorf("late failure"), time.Second); err != nil {
		t.Fatalf("late fail: %v", err)
	}

	got, err := repo.GetByID(dbc, evt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.OutboxStatusCompleted {
		t.Fatalf("completed must be terminal, got %s", got.Status)
	}
	if got.WorkerToken != nil || got.LockedAt != nil {
		t.Fatalf("complete must release the lease")
	}
}

func TestFailRetriesThenDeadLettersOnce(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	eventRepo := outbox.NewOutboxEventRepo(tx, testutil.Logger(t))
	deadRepo := outbox.NewDeadLetterRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	eventType := "test.deadletter." + uuid.NewString()

	evt := testutil.SeedOutboxEvent(t, ctx, tx, eventType, types.OutboxStatusPending, 0, 2)
	token := uuid.New()

	// Attempt 1 fails with budget left: back to pending, gated by available_at.
	if _, err := eventRepo.ClaimNext(dbc, token, []string{eventType}, false, time.Minute); err != nil {
		t.Fatalf("claim 1: %v", err)
	}
	if err := eventRepo.Fail(dbc, evt.ID, fmt.Errorf("boom 1"), time.Hour); err != nil {
		t.Fatalf("fail 1: %v", err)
	}
	afterFirst, err := eventRepo.GetByID(dbc, evt.ID)
	if err != nil {
		t.Fatalf("get after first fail: %v", err)
	}
	if afterFirst.Status != types.OutboxStatusPending {
		t.Fatalf("expected pending for retry, got %s", afterFirst.Status)
	}
	if !afterFirst.AvailableAt.After(time.Now().UTC().Add(30 * time.Minute)) {
		t.Fatalf("expected available_at pushed by the retry delay, got %s", afterFirst.AvailableAt)
	}
	if dead, err := deadRepo.GetByEventID(dbc, evt.ID); err != nil || dead != nil {
		t.Fatalf("no dead letter expected yet, got %+v err %v", dead, err)
	}

	// Make it claimable again and exhaust the budget.
	if err := tx.Model(&types.OutboxEvent{}).Where("id = ?", evt.ID).
		Update("available_at", time.Now().UTC().Add(-time.Second)).Error; err != nil {
		t.Fatalf("reset available_at: %v", err)
	}
	if _, err := eventRepo.ClaimNext(dbc, token, []string{eventType}, false, time.Minute); err != nil {
		t.Fatalf("claim 2: %v", err)
	}
	if err := eventRepo.Fail(dbc, evt.ID, fmt.Errorf("boom 2"), time.Hour); err != nil {
		t.Fatalf("fail 2: %v", err)
	}
	// A duplicate Fail after exhaustion must update, not duplicate.
	if err := eventRepo.Fail(dbc, evt.ID, fmt.Errorf("boom 3"), time.Hour); err != nil {
		t.Fatalf("fail 3: %v", err)
	}

	final, err := eventRepo.GetByID(dbc, evt.ID)
	if err != nil {
		t.Fatalf("get final: %v", err)
	}
	if final.Status != types.OutboxStatusFailed {
		t.Fatalf("expected terminal failed, got %s", final.Status)
	}

	var deadCount int64
	if err := tx.Model(&types.DeadLetterEvent{}).Where("event_id = ?", evt.ID).Count(&deadCount).Error; err != nil {
		t.Fatalf("count dead letters: %v", err)
	}
	if deadCount != 1 {
		t.Fatalf("expected exactly one dead letter row, got %d", deadCount)
	}
	dead, err := deadRepo.GetByEventID(dbc, evt.ID)
	if err != nil {
		t.Fatalf("get dead letter: %v", err)
	}
	if dead.LastError != "boom 3" {
		t.Fatalf("expected dead letter updated with the latest error, got %q", dead.LastError)
	}
}

func TestClaimNextUnderContention(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := outbox.NewOutboxEventRepo(db, testutil.Logger(t))

	// Runs on the shared handle so every claimer opens its own transaction;
	// a rollback-tx fixture would serialize them on one connection.
	eventType := "test.contend." + uuid.NewString()
	evt := testutil.SeedOutboxEvent(t, ctx, db, eventType, types.OutboxStatusPending, 0, 3)
	t.Cleanup(func() {
		db.Where("id = ?", evt.ID).Delete(&types.OutboxEvent{})
	})

	const claimers = 8
	var wg sync.WaitGroup
	var wins atomic.Int64
	errCh := make(chan error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.ClaimNext(dbctx.Context{Ctx: ctx}, uuid.New(), []string{eventType}, false, time.Minute)
			if err != nil {
				errCh <- err
				return
			}
			if claimed != nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("claim: %v", err)
	}

	if got := wins.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}

	var after types.OutboxEvent
	if err := db.Where("id = ?", evt.ID).First(&after).Error; err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if after.Status != types.OutboxStatusProcessing {
		t.Fatalf("expected claimed event processing, got %s", after.Status)
	}
	if after.WorkerToken == nil || after.LockedAt == nil {
		t.Fatalf("expected lease fields set, got %+v", after)
	}
	if after.Attempts != 1 {
		t.Fatalf("expected a single attempt recorded, got %d", after.Attempts)
	}
}
