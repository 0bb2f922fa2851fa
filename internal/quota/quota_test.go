package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/studentverse/redemption/internal/domain"
	"github.com/studentverse/redemption/internal/kv"
)

func newTestLedger(t *testing.T) (*Ledger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(kv.New(rdb)), mr
}

func TestMark_OncePerDay(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if err := l.Mark(ctx, "u1", "o1", "2025-06-02", 14*time.Hour); err != nil {
		t.Fatalf("first mark: %v", err)
	}

	err := l.Mark(ctx, "u1", "o1", "2025-06-02", 14*time.Hour)
	if !domain.IsKind(err, domain.KindDailyLimit) {
		t.Fatalf("second mark: got %v want DAILY_LIMIT", err)
	}

	// A different offer, user or day is a separate slot.
	if err := l.Mark(ctx, "u1", "o2", "2025-06-02", 14*time.Hour); err != nil {
		t.Errorf("different offer: %v", err)
	}
	if err := l.Mark(ctx, "u2", "o1", "2025-06-02", 14*time.Hour); err != nil {
		t.Errorf("different user: %v", err)
	}
	if err := l.Mark(ctx, "u1", "o1", "2025-06-03", 14*time.Hour); err != nil {
		t.Errorf("next day: %v", err)
	}
}

func TestMark_SlotFreesAtMidnight(t *testing.T) {
	l, mr := newTestLedger(t)
	ctx := context.Background()

	if err := l.Mark(ctx, "u1", "o1", "2025-06-02", 2*time.Hour); err != nil {
		t.Fatalf("mark: %v", err)
	}

	mr.FastForward(2*time.Hour + time.Second)

	if err := l.Mark(ctx, "u1", "o1", "2025-06-02", time.Hour); err != nil {
		t.Errorf("mark after ttl: %v", err)
	}
}

func TestClear_FreesTheSlot(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if err := l.Mark(ctx, "u1", "o1", "2025-06-02", 14*time.Hour); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := l.Clear(ctx, "u1", "o1", "2025-06-02"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := l.Mark(ctx, "u1", "o1", "2025-06-02", 14*time.Hour); err != nil {
		t.Errorf("mark after clear: %v", err)
	}
}

func TestMark_FailsClosedWhenBackendDown(t *testing.T) {
	l, mr := newTestLedger(t)

	mr.Close()

	err := l.Mark(context.Background(), "u1", "o1", "2025-06-02", time.Hour)
	if !domain.IsKind(err, domain.KindTransient) {
		t.Errorf("mark with backend down: got %v want TRANSIENT", err)
	}
}
