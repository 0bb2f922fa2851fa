// Package token issues the short-lived, single-use proof tokens shown as
// QR codes at the counter. A token is an opaque random string pointing at
// a KV record that lives for the configured TTL; consuming it removes the
// record atomically, so replays and races collapse to "not found".
package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/studentverse/redemption/internal/clock"
	"github.com/studentverse/redemption/internal/domain"
	"github.com/studentverse/redemption/internal/kv"
)

const redeemKeyPrefix = "redeem:token:"

// Record is the state a live proof token points at. It never contains
// amounts; those are negotiated at confirmation time.
type Record struct {
	EntitlementID string    `json:"entitlement_id"`
	UserID        string    `json:"user_id"`
	OfferID       string    `json:"offer_id"`
	DeviceID      string    `json:"device_id,omitempty"`
	IssuedAt      time.Time `json:"issued_at"`
}

// Broker issues and consumes proof tokens.
type Broker struct {
	kv      *kv.Client
	ttl     time.Duration
	entropy int
	clk     clock.Clock
}

// New builds a broker. entropyBytes is the random length of each token
// before encoding; 24 bytes encodes to a 32-character token.
func New(kvc *kv.Client, ttl time.Duration, entropyBytes int, clk clock.Clock) *Broker {
	if entropyBytes <= 0 {
		entropyBytes = 24
	}
	return &Broker{kv: kvc, ttl: ttl, entropy: entropyBytes, clk: clk}
}

// TTL returns the configured token lifetime.
func (b *Broker) TTL() time.Duration { return b.ttl }

// Issue mints a fresh token for rec and stores it for the TTL. Issuing
// again for the same entitlement simply leaves the older token to die on
// its own clock; tokens are never listed or linked back.
func (b *Broker) Issue(ctx context.Context, rec Record) (opaque string, expiresAt time.Time, err error) {
	buf := make([]byte, b.entropy)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("token entropy: %w", err)
	}
	opaque = base64.RawURLEncoding.EncodeToString(buf)

	now := b.clk.Now()
	rec.IssuedAt = now
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal token record: %w", err)
	}

	if err := b.kv.SetWithTTL(ctx, redeemKeyPrefix+opaque, string(raw), b.ttl); err != nil {
		return "", time.Time{}, domain.Wrap(domain.KindTransient, "token store unavailable", err)
	}
	return opaque, now.Add(b.ttl), nil
}

// Consume resolves and destroys a token in one step. Unknown, expired,
// replayed and malformed tokens all answer the same INVALID_OR_EXPIRED;
// nothing distinguishes which it was.
func (b *Broker) Consume(ctx context.Context, opaque string) (Record, error) {
	if len(opaque) != base64.RawURLEncoding.EncodedLen(b.entropy) {
		return Record{}, errInvalidToken()
	}
	if _, err := base64.RawURLEncoding.DecodeString(opaque); err != nil {
		return Record{}, errInvalidToken()
	}

	raw, err := b.kv.GetDel(ctx, redeemKeyPrefix+opaque)
	if errors.Is(err, kv.ErrNotFound) {
		return Record{}, errInvalidToken()
	}
	if err != nil {
		return Record{}, domain.Wrap(domain.KindTransient, "token store unavailable", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal token record: %w", err)
	}
	return rec, nil
}

func errInvalidToken() error {
	return domain.E(domain.KindInvalidOrExpired, "invalid or expired proof token")
}

// Short returns a loggable prefix of a token. Full tokens never reach
// logs or error messages.
func Short(opaque string) string {
	if len(opaque) <= 8 {
		return opaque
	}
	return opaque[:8] + "..."
}
