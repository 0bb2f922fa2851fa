// Package redemption orchestrates the entitlement lifecycle: claiming
// offers, proving them at the counter, validating, confirming and voiding
// redemptions. All state lives in the store and the KV; the service holds
// no mutable state of its own and is safe for concurrent use.
package redemption

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studentverse/redemption/internal/analytics"
	"github.com/studentverse/redemption/internal/clock"
	"github.com/studentverse/redemption/internal/domain"
	"github.com/studentverse/redemption/internal/quota"
	"github.com/studentverse/redemption/internal/ratelimit"
	"github.com/studentverse/redemption/internal/store"
	"github.com/studentverse/redemption/internal/token"
)

const sweepBatchSize = 500

// Config carries the service's behavior knobs.
type Config struct {
	// VoidWindow bounds how long after use a redemption may be voided.
	// The same-local-day rule applies on top of it.
	VoidWindow time.Duration
	// PendingTimeout is how long a validation may sit unconfirmed before
	// the sweeper hands the entitlement back to the owner.
	PendingTimeout time.Duration
}

// Service wires the durable store, the KV-backed gates and the token
// broker into the redemption operations.
type Service struct {
	store   *store.Store
	quota   *quota.Ledger
	limiter *ratelimit.Limiter
	tokens  *token.Broker
	events  *analytics.Recorder
	clk     clock.Clock
	loc     *time.Location
	cfg     Config
	log     *zap.Logger
}

func NewService(
	st *store.Store,
	ledger *quota.Ledger,
	limiter *ratelimit.Limiter,
	broker *token.Broker,
	events *analytics.Recorder,
	clk clock.Clock,
	loc *time.Location,
	cfg Config,
	log *zap.Logger,
) *Service {
	return &Service{
		store:   st,
		quota:   ledger,
		limiter: limiter,
		tokens:  broker,
		events:  events,
		clk:     clk,
		loc:     loc,
		cfg:     cfg,
		log:     log.With(zap.String("component", "redemption")),
	}
}

// checkEligibility applies the offer's own claim rules. local must already
// be in the platform zone; weekday and time-window checks read its wall
// clock.
func checkEligibility(offer domain.Offer, merchant domain.Merchant, local time.Time) error {
	if !offer.IsActive {
		return domain.E(domain.KindIneligibleOffer, "offer is not active")
	}
	if !merchant.IsActive {
		return domain.E(domain.KindIneligibleOffer, "merchant is not active")
	}
	if offer.ValidFrom != nil && local.Before(*offer.ValidFrom) {
		return domain.E(domain.KindIneligibleOffer, "offer is not yet valid")
	}
	if offer.ValidUntil != nil && local.After(*offer.ValidUntil) {
		return domain.E(domain.KindIneligibleOffer, "offer validity has ended")
	}
	if !offer.AllowsWeekday(local.Weekday()) {
		return domain.E(domain.KindIneligibleOffer, "offer is not valid today")
	}
	if !offer.InTimeWindow(local) {
		return domain.E(domain.KindIneligibleOffer, "offer is outside its daily time window")
	}
	if offer.MaxTotalClaims > 0 && offer.TotalClaims >= offer.MaxTotalClaims {
		return domain.E(domain.KindIneligibleOffer, "offer is fully claimed")
	}
	return nil
}

// discountText renders the one-line deal description shown on the
// merchant terminal after a successful scan.
func discountText(o domain.Offer) string {
	switch o.Type {
	case domain.OfferPercentage:
		return strings.TrimSuffix(strings.TrimSpace(o.DiscountValue), "%") + "% off"
	case domain.OfferBOGO:
		return "Buy one, get one free"
	case domain.OfferBundle:
		if o.OriginalPrice.Valid && o.DiscountedPrice.Valid {
			return fmt.Sprintf("Bundle: %s for %s",
				o.OriginalPrice.Decimal.StringFixed(2), o.DiscountedPrice.Decimal.StringFixed(2))
		}
		return "Bundle deal"
	}
	return o.DiscountValue
}
