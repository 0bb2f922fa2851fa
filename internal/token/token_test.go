package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/studentverse/redemption/internal/clock"
	"github.com/studentverse/redemption/internal/domain"
	"github.com/studentverse/redemption/internal/kv"
)

var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

var testRecord = Record{
	EntitlementID: "e-123",
	UserID:        "u-456",
	OfferID:       "o-789",
	DeviceID:      "device-abc",
}

func newTestBroker(t *testing.T) (*Broker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(kv.New(rdb), 30*time.Second, 24, clock.Fixed{T: testNow}), mr
}

// ── Issue / Consume ───────────────────────────────────────────────────────────

func TestIssueConsume_RoundTrip(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	opaque, expiresAt, err := b.Issue(ctx, testRecord)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(opaque) != 32 {
		t.Errorf("token length: got %d want 32 (24 bytes base64url)", len(opaque))
	}
	if want := testNow.Add(30 * time.Second); !expiresAt.Equal(want) {
		t.Errorf("expiresAt: got %v want %v", expiresAt, want)
	}

	rec, err := b.Consume(ctx, opaque)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if rec.EntitlementID != testRecord.EntitlementID {
		t.Errorf("EntitlementID: got %q want %q", rec.EntitlementID, testRecord.EntitlementID)
	}
	if rec.DeviceID != testRecord.DeviceID {
		t.Errorf("DeviceID: got %q want %q", rec.DeviceID, testRecord.DeviceID)
	}
	if !rec.IssuedAt.Equal(testNow) {
		t.Errorf("IssuedAt: got %v want %v", rec.IssuedAt, testNow)
	}
}

func TestConsume_SingleUse(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	opaque, _, err := b.Issue(ctx, testRecord)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := b.Consume(ctx, opaque); err != nil {
		t.Fatalf("first Consume: %v", err)
	}

	_, err = b.Consume(ctx, opaque)
	if !domain.IsKind(err, domain.KindInvalidOrExpired) {
		t.Errorf("replay: got %v want INVALID_OR_EXPIRED", err)
	}
}

func TestConsume_ExpiredByTTL(t *testing.T) {
	b, mr := newTestBroker(t)
	ctx := context.Background()

	opaque, _, err := b.Issue(ctx, testRecord)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	mr.FastForward(31 * time.Second)

	if _, err := b.Consume(ctx, opaque); !domain.IsKind(err, domain.KindInvalidOrExpired) {
		t.Errorf("expired token: got %v want INVALID_OR_EXPIRED", err)
	}
}

func TestIssue_TokensAreUnique(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		opaque, _, err := b.Issue(ctx, testRecord)
		if err != nil {
			t.Fatalf("Issue %d: %v", i, err)
		}
		if seen[opaque] {
			t.Fatalf("duplicate token minted: %s", Short(opaque))
		}
		seen[opaque] = true
	}
}

func TestIssue_ReissueLeavesOldTokenToExpire(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	first, _, _ := b.Issue(ctx, testRecord)
	second, _, _ := b.Issue(ctx, testRecord)

	// Both stay individually consumable until their own TTLs end.
	if _, err := b.Consume(ctx, second); err != nil {
		t.Fatalf("consume second: %v", err)
	}
	if _, err := b.Consume(ctx, first); err != nil {
		t.Fatalf("consume first: %v", err)
	}
}

// ── malformed input ───────────────────────────────────────────────────────────

func TestConsume_MalformedWithoutTouchingBackend(t *testing.T) {
	b, mr := newTestBroker(t)
	ctx := context.Background()

	// With the backend gone, only a well-formed token reaches it. Malformed
	// input must classify INVALID_OR_EXPIRED, not TRANSIENT.
	mr.Close()

	cases := []string{
		"",
		"short",
		"has spaces in it which break base64!",
		"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA#", // right length, bad charset
	}
	for _, opaque := range cases {
		if _, err := b.Consume(ctx, opaque); !domain.IsKind(err, domain.KindInvalidOrExpired) {
			t.Errorf("Consume(%q): got %v want INVALID_OR_EXPIRED", opaque, err)
		}
	}
}

func TestConsume_BackendDownIsTransient(t *testing.T) {
	b, mr := newTestBroker(t)
	ctx := context.Background()

	opaque, _, err := b.Issue(ctx, testRecord)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	mr.Close()

	if _, err := b.Consume(ctx, opaque); !domain.IsKind(err, domain.KindTransient) {
		t.Errorf("well-formed token, backend down: got %v want TRANSIENT", err)
	}
}

// ── Short ─────────────────────────────────────────────────────────────────────

func TestShort(t *testing.T) {
	if got := Short("abcdefghijklmnop"); got != "abcdefgh..." {
		t.Errorf("Short: got %q", got)
	}
	if got := Short("tiny"); got != "tiny" {
		t.Errorf("Short on short input: got %q", got)
	}
}
