// Package quota keeps the fast-path markers behind the one-claim-per-day
// rule. A marker lives from the claim until local midnight; the partial
// unique index in the store backstops it, so a lost marker can never cause
// a double claim, only a slower rejection.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studentverse/redemption/internal/domain"
	"github.com/studentverse/redemption/internal/kv"
)

const dailyClaimKeyPrefix = "claim:daily:"

// Ledger reserves and releases daily claim slots.
type Ledger struct {
	kv *kv.Client
}

func New(kvc *kv.Client) *Ledger {
	return &Ledger{kv: kvc}
}

func key(userID, offerID, day string) string {
	return fmt.Sprintf("%s%s:%s:%s", dailyClaimKeyPrefix, userID, offerID, day)
}

// Mark reserves the (user, offer, day) slot until ttl runs out. A taken
// slot rejects with DAILY_LIMIT. This path fails closed: with the backend
// away it rejects TRANSIENT rather than guess.
func (l *Ledger) Mark(ctx context.Context, userID, offerID, day string, ttl time.Duration) error {
	ok, err := l.kv.SetIfAbsent(ctx, key(userID, offerID, day), "1", ttl)
	if err != nil {
		if errors.Is(err, kv.ErrUnavailable) {
			return domain.Wrap(domain.KindTransient, "claim marker store unavailable", err)
		}
		return err
	}
	if !ok {
		return domain.E(domain.KindDailyLimit, "offer already claimed today")
	}
	return nil
}

// Clear releases the slot. Used when a void frees the day and when a
// claim is rolled back after losing the store insert.
func (l *Ledger) Clear(ctx context.Context, userID, offerID, day string) error {
	if err := l.kv.Del(ctx, key(userID, offerID, day)); err != nil {
		return domain.Wrap(domain.KindTransient, "claim marker store unavailable", err)
	}
	return nil
}
