package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

func TestReserveCommitAdjustLifecycle(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	id := seedStock(t, conn, 10, 10, 0, 0, true)

	ok, err := svc.Reserve(ctx, id, 3)
	if err != nil || !ok {
		t.Fatalf("reserve: ok=%v err=%v", ok, err)
	}
	assertCounters(t, mustLoad(t, conn, id), 10, 7, 3, 0)

	if err := svc.Commit(ctx, id, 3); err != nil {
		t.Fatalf("commit: %v", err)
	}
	assertCounters(t, mustLoad(t, conn, id), 10, 7, 0, 3)

	res, err := svc.AdjustTotal(ctx, id, 12)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if res.Shortfall != 0 {
		t.Fatalf("expected no shortfall, got %d", res.Shortfall)
	}
	assertCounters(t, mustLoad(t, conn, id), 12, 9, 0, 3)

	for _, event := range []enums.OutboxEventType{enums.EventStockReserved, enums.EventStockCommitted, enums.EventStockAdjusted} {
		if n := countEvents(t, conn, event); n != 1 {
			t.Fatalf("expected one %s event, got %d", event, n)
		}
	}
}

func TestCheckAvailabilityReportsCurrentAvailable(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	id := seedStock(t, conn, 5, 2, 3, 0, true)

	got, err := svc.CheckAvailability(context.Background(), id, 3)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got.Available || got.Quantity != 2 {
		t.Fatalf("expected {false 2}, got %+v", got)
	}

	got, err = svc.CheckAvailability(context.Background(), id, 2)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !got.Available || got.Quantity != 2 {
		t.Fatalf("expected {true 2}, got %+v", got)
	}
}

func TestReserveReleaseRestoresCounters(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	id := seedStock(t, conn, 8, 6, 1, 1, true)

	if ok, err := svc.Reserve(ctx, id, 4); err != nil || !ok {
		t.Fatalf("reserve: ok=%v err=%v", ok, err)
	}
	if err := svc.Release(ctx, id, 4); err != nil {
		t.Fatalf("release: %v", err)
	}
	assertCounters(t, mustLoad(t, conn, id), 8, 6, 1, 1)
	if n := countEvents(t, conn, enums.EventStockReleased); n != 1 {
		t.Fatalf("expected release event, got %d", n)
	}
}

func TestReserveInsufficientReturnsFalseWithoutWriting(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	id := seedStock(t, conn, 5, 2, 3, 0, true)

	ok, err := svc.Reserve(context.Background(), id, 3)
	if err != nil {
		t.Fatalf("insufficient stock must not be an error: %v", err)
	}
	if ok {
		t.Fatal("expected reservation to be refused")
	}
	assertCounters(t, mustLoad(t, conn, id), 5, 2, 3, 0)
	if n := countEvents(t, conn, enums.EventStockReserved); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}

func TestUntrackedOperationsAreNoops(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	id := seedStock(t, conn, 4, 1, 2, 1, false)

	got, err := svc.CheckAvailability(ctx, id, 50)
	if err != nil || !got.Available || got.Quantity != 50 {
		t.Fatalf("expected untracked check to pass, got %+v err=%v", got, err)
	}
	if ok, err := svc.Reserve(ctx, id, 50); err != nil || !ok {
		t.Fatalf("expected untracked reserve to succeed, ok=%v err=%v", ok, err)
	}
	if err := svc.Commit(ctx, id, 50); err != nil {
		t.Fatalf("untracked commit: %v", err)
	}
	if err := svc.Release(ctx, id, 50); err != nil {
		t.Fatalf("untracked release: %v", err)
	}
	for _, total := range []int{0, 40} {
		res, err := svc.AdjustTotal(ctx, id, total)
		if err != nil {
			t.Fatalf("untracked adjust to %d: %v", total, err)
		}
		if res.Shortfall != 0 || res.Level.Tracked || res.Level.Quantity != 4 {
			t.Fatalf("adjust to %d: unexpected result %+v", total, res)
		}
	}
	if n := countEvents(t, conn, enums.EventStockAdjusted); n != 0 {
		t.Fatalf("expected no adjust events, got %d", n)
	}
	item := mustLoad(t, conn, id)
	assertCounters(t, item, 4, 1, 2, 1)
	if item.InventoryTracked {
		t.Fatal("expected row to stay untracked")
	}
}

func TestMissingLedgerRowIsTreatedAsUntracked(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	id := uuid.New()

	got, err := svc.CheckAvailability(context.Background(), id, 2)
	if err != nil || !got.Available {
		t.Fatalf("expected available, got %+v err=%v", got, err)
	}
	if ok, err := svc.Reserve(context.Background(), id, 2); err != nil || !ok {
		t.Fatalf("expected reserve no-op success, ok=%v err=%v", ok, err)
	}
	if err := svc.Commit(context.Background(), id, 2); err != nil {
		t.Fatalf("expected commit no-op success: %v", err)
	}
	if err := svc.Release(context.Background(), id, 2); err != nil {
		t.Fatalf("expected release no-op success: %v", err)
	}
	res, err := svc.AdjustTotal(context.Background(), id, 5)
	if err != nil {
		t.Fatalf("expected adjust no-op success: %v", err)
	}
	if res.Level.EntityID != id || res.Requested != 5 || res.Shortfall != 0 {
		t.Fatalf("unexpected adjust result %+v", res)
	}
	var rows int64
	if err := conn.Model(&models.StockItem{}).Where("entity_id = ?", id).Count(&rows).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 0 {
		t.Fatalf("adjust must not create a ledger row, got %d", rows)
	}
	if _, err := svc.Level(context.Background(), id); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found level, got %v", err)
	}
}

func TestCommitBeyondOnHoldIsInvariantViolation(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	id := seedStock(t, conn, 5, 3, 2, 0, true)

	err := svc.Commit(context.Background(), id, 3)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	assertCounters(t, mustLoad(t, conn, id), 5, 3, 2, 0)

	err = svc.Release(context.Background(), id, 3)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvariantViolation) {
		t.Fatalf("expected invariant violation on release, got %v", err)
	}
}

func TestAdjustTotalBelowHeldUnitsClampsAndReportsShortfall(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	id := seedStock(t, conn, 5, 2, 2, 1, true)

	res, err := svc.AdjustTotal(context.Background(), id, 1)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if res.Shortfall != 2 || res.Requested != 1 {
		t.Fatalf("expected shortfall 2, got %+v", res)
	}
	assertCounters(t, mustLoad(t, conn, id), 3, 0, 2, 1)

	res, err = svc.AdjustTotal(context.Background(), id, 0)
	if err != nil {
		t.Fatalf("adjust to zero: %v", err)
	}
	if res.Level.Available != 0 || res.Level.OnHold != 2 || res.Level.Committed != 1 {
		t.Fatalf("held and committed units must survive, got %+v", res.Level)
	}
}

func TestSetTrackingReenableResetsCounters(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	id := seedStock(t, conn, 6, 2, 3, 1, true)

	level, err := svc.SetTracking(ctx, id, false)
	if err != nil || level.Tracked {
		t.Fatalf("disable tracking: %+v err=%v", level, err)
	}
	level, err = svc.SetTracking(ctx, id, true)
	if err != nil {
		t.Fatalf("enable tracking: %v", err)
	}
	if !level.Tracked || level.Available != 6 || level.OnHold != 0 || level.Committed != 0 {
		t.Fatalf("expected reset level, got %+v", level)
	}
	if n := countEvents(t, conn, enums.EventStockTrackingChanged); n != 2 {
		t.Fatalf("expected two tracking events, got %d", n)
	}

	// Enabling an already tracked row leaves the counters and the outbox alone.
	if _, err := svc.Reserve(ctx, id, 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := svc.SetTracking(ctx, id, true); err != nil {
		t.Fatalf("enable again: %v", err)
	}
	assertCounters(t, mustLoad(t, conn, id), 6, 4, 2, 0)
	if n := countEvents(t, conn, enums.EventStockTrackingChanged); n != 2 {
		t.Fatalf("expected no extra tracking event, got %d", n)
	}
}

func TestQuantitiesMustBePositive(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	id := seedStock(t, conn, 1, 1, 0, 0, true)
	ctx := context.Background()

	checks := map[string]error{}
	_, checks["check"] = svc.CheckAvailability(ctx, id, 0)
	_, checks["reserve"] = svc.Reserve(ctx, id, -1)
	checks["commit"] = svc.Commit(ctx, id, 0)
	checks["release"] = svc.Release(ctx, id, 0)
	_, checks["adjust"] = svc.AdjustTotal(ctx, id, -1)
	for op, err := range checks {
		if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", op, err)
		}
	}
	if _, err := svc.AdjustTotal(ctx, id, 0); err != nil {
		t.Fatalf("adjust to zero should be allowed: %v", err)
	}
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	const (
		available = 10
		qty       = 3
		workers   = 12
	)
	id := seedStock(t, conn, available, available, 0, 0, true)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		failures  atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.Reserve(context.Background(), id, qty)
			if err != nil {
				failures.Add(1)
				return
			}
			if ok {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("unexpected errors: %d", failures.Load())
	}
	if got := int(successes.Load()); got != available/qty {
		t.Fatalf("expected %d successful reservations, got %d", available/qty, got)
	}
	assertCounters(t, mustLoad(t, conn, id), available, available%qty, (available/qty)*qty, 0)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected missing ledger error")
	}
	conn := newTestDB(t)
	if _, err := NewService(ServiceParams{Ledger: NewLedger(conn), Logger: logger.Nop()}); err == nil {
		t.Fatal("expected missing tx runner error")
	}
}
