package redemption

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/studentverse/redemption/internal/analytics"
	"github.com/studentverse/redemption/internal/clock"
	"github.com/studentverse/redemption/internal/domain"
	"github.com/studentverse/redemption/internal/savings"
	"github.com/studentverse/redemption/internal/state"
	"github.com/studentverse/redemption/internal/token"
)

// Claim reserves today's entitlement for the offer. The KV marker is the
// fast gate; the store's partial unique index is the backstop, so a lost
// marker can only slow a duplicate down, never admit it.
func (s *Service) Claim(ctx context.Context, userID, offerID, deviceID string) (domain.Entitlement, error) {
	now := s.clk.Now()
	local := now.In(s.loc)

	offer, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return domain.Entitlement{}, err
	}
	merchant, err := s.store.GetMerchant(ctx, offer.MerchantID)
	if err != nil {
		return domain.Entitlement{}, err
	}
	if err := checkEligibility(offer, merchant, local); err != nil {
		return domain.Entitlement{}, err
	}
	if offer.Type == domain.OfferPercentage {
		// A percentage offer with an unparseable discount can never be
		// confirmed; reject it at claim time instead of at the counter.
		if _, err := savings.ParsePercent(offer.DiscountValue); err != nil {
			return domain.Entitlement{}, err
		}
	}

	if err := s.limiter.Allow(ctx, userID); err != nil {
		return domain.Entitlement{}, err
	}

	day := clock.Day(now, s.loc)
	if err := s.quota.Mark(ctx, userID, offerID, day, clock.UntilMidnight(now, s.loc)); err != nil {
		return domain.Entitlement{}, err
	}

	e := domain.Entitlement{
		ID:        uuid.NewString(),
		UserID:    userID,
		OfferID:   offerID,
		State:     domain.StateActive,
		ClaimedAt: now.UTC(),
		ClaimDay:  day,
		ExpiresAt: clock.EndOfDay(now, s.loc).UTC(),
		DeviceID:  deviceID,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if err := s.store.CreateEntitlement(ctx, e); err != nil {
		// On DAILY_LIMIT the index caught a claim the marker had lost;
		// the fresh marker now mirrors the truth and stays. Everything
		// else rolls the marker back so a storage hiccup does not lock
		// the user out until midnight.
		if !domain.IsKind(err, domain.KindDailyLimit) {
			if cerr := s.quota.Clear(ctx, userID, offerID, day); cerr != nil {
				s.log.Warn("claim marker rollback failed",
					zap.String("user_id", userID), zap.String("offer_id", offerID), zap.Error(cerr))
			}
		}
		return domain.Entitlement{}, err
	}

	if err := s.store.IncrementOfferClaims(ctx, offerID); err != nil {
		s.log.Warn("offer claim counter not bumped", zap.String("offer_id", offerID), zap.Error(err))
	}

	s.events.Emit(ctx, analytics.EventOfferClaim, userID, offerID, map[string]any{
		"entitlement_id": e.ID,
		"claim_day":      day,
	})
	s.log.Info("entitlement claimed",
		zap.String("entitlement_id", e.ID), zap.String("offer_id", offerID))

	return e, nil
}

// Proof is a freshly issued counter token.
type Proof struct {
	Token     string
	ExpiresAt time.Time
	TTL       time.Duration
}

// Prove issues a proof token for an active entitlement the caller owns.
// State is not mutated; an abandoned token simply dies on its TTL.
func (s *Service) Prove(ctx context.Context, userID, entitlementID string) (Proof, error) {
	e, err := s.store.GetEntitlement(ctx, entitlementID)
	if err != nil {
		return Proof{}, err
	}
	if e.UserID != userID {
		return Proof{}, domain.E(domain.KindForbidden, "entitlement belongs to another user")
	}

	now := s.clk.Now()
	if !now.Before(e.ExpiresAt) {
		s.expireInline(ctx, e, now)
		return Proof{}, domain.E(domain.KindInvalidState, "entitlement is expired")
	}
	// A token is only worth issuing while a validation is still legal.
	if !state.Can(e.State, state.EventValidate) {
		return Proof{}, domain.Ef(domain.KindInvalidState, "entitlement is %s", e.State)
	}

	opaque, expiresAt, err := s.tokens.Issue(ctx, token.Record{
		EntitlementID: e.ID,
		UserID:        e.UserID,
		OfferID:       e.OfferID,
		DeviceID:      e.DeviceID,
	})
	if err != nil {
		return Proof{}, err
	}

	s.log.Info("proof token issued",
		zap.String("entitlement_id", e.ID), zap.String("token", token.Short(opaque)))
	return Proof{Token: opaque, ExpiresAt: expiresAt, TTL: s.tokens.TTL()}, nil
}

// ValidationPass is what the merchant terminal shows on a successful scan.
type ValidationPass struct {
	EntitlementID string
	OfferID       string
	OfferTitle    string
	DiscountText  string
	MerchantName  string
	StudentName   string
}

// Validate consumes a proof token and reserves the entitlement for
// confirmation. The token is single-use: it is gone after this call
// whether or not validation passes. Losing the reservation race answers
// INVALID_OR_EXPIRED, same as a dead token, so terminals cannot probe.
func (s *Service) Validate(ctx context.Context, validatorID, opaque, deviceID string) (ValidationPass, error) {
	rec, err := s.tokens.Consume(ctx, opaque)
	if err != nil {
		return ValidationPass{}, err
	}

	e, err := s.store.GetEntitlement(ctx, rec.EntitlementID)
	if err != nil {
		return ValidationPass{}, err
	}

	now := s.clk.Now()
	if !now.Before(e.ExpiresAt) {
		s.expireInline(ctx, e, now)
		return ValidationPass{}, domain.E(domain.KindInvalidState, "entitlement is expired")
	}

	reserved, err := state.Next(e.State, state.EventValidate)
	if err != nil {
		// The token is spent either way, and a dead entitlement must
		// look exactly like a dead token.
		return ValidationPass{}, domain.E(domain.KindInvalidOrExpired, "invalid or expired proof token")
	}
	if err := s.store.TransitionEntitlement(ctx, e.ID, e.State, reserved, nil, now); err != nil {
		if domain.IsKind(err, domain.KindInvalidState) {
			// Someone else validated first, or the state moved on.
			return ValidationPass{}, domain.E(domain.KindInvalidOrExpired, "invalid or expired proof token")
		}
		return ValidationPass{}, err
	}

	if e.DeviceID != "" && deviceID != e.DeviceID {
		s.releaseReservation(ctx, e.ID, now)
		return ValidationPass{}, domain.E(domain.KindDeviceMismatch, "entitlement is bound to another device")
	}

	offer, err := s.store.GetOffer(ctx, e.OfferID)
	if err != nil {
		s.releaseReservation(ctx, e.ID, now)
		return ValidationPass{}, err
	}
	merchant, err := s.store.GetMerchant(ctx, offer.MerchantID)
	if err != nil {
		s.releaseReservation(ctx, e.ID, now)
		return ValidationPass{}, err
	}
	user, err := s.store.GetUser(ctx, e.UserID)
	if err != nil {
		s.releaseReservation(ctx, e.ID, now)
		return ValidationPass{}, err
	}

	s.log.Info("validation reserved",
		zap.String("entitlement_id", e.ID), zap.String("validator_id", validatorID))

	return ValidationPass{
		EntitlementID: e.ID,
		OfferID:       offer.ID,
		OfferTitle:    offer.Title,
		DiscountText:  discountText(offer),
		MerchantName:  merchant.Name,
		StudentName:   user.DisplayName(),
	}, nil
}

// releaseReservation hands a reservation back after a post-reserve
// rejection. Failure leaves the row for the stale-pending sweeper.
func (s *Service) releaseReservation(ctx context.Context, entitlementID string, at time.Time) {
	err := s.store.TransitionEntitlement(ctx, entitlementID,
		domain.StatePendingConfirmation, domain.StateActive, nil, at)
	if err != nil && !domain.IsKind(err, domain.KindInvalidState) {
		s.log.Warn("reservation release failed",
			zap.String("entitlement_id", entitlementID), zap.Error(err))
	}
}

// Confirm settles a reserved entitlement: the bill is split by the
// savings calculator and the financial record is written in the same
// transaction that moves the state to USED. Replays lose the CAS.
func (s *Service) Confirm(ctx context.Context, validatorID, entitlementID string, bill decimal.Decimal, finalAmount *decimal.Decimal) (domain.Redemption, error) {
	e, err := s.store.GetEntitlement(ctx, entitlementID)
	if err != nil {
		return domain.Redemption{}, err
	}
	if _, err := state.Next(e.State, state.EventConfirm); err != nil {
		return domain.Redemption{}, err
	}

	offer, err := s.store.GetOffer(ctx, e.OfferID)
	if err != nil {
		return domain.Redemption{}, err
	}
	split, err := savings.Compute(offer, bill, finalAmount)
	if err != nil {
		return domain.Redemption{}, err
	}

	now := s.clk.Now()
	r := domain.Redemption{
		ID:             uuid.NewString(),
		EntitlementID:  e.ID,
		MerchantID:     offer.MerchantID,
		OfferID:        offer.ID,
		UserID:         e.UserID,
		ValidatorID:    validatorID,
		TotalBill:      split.Bill,
		DiscountAmount: split.Discount,
		FinalAmount:    split.Final,
		OfferType:      offer.Type,
		RedeemedAt:     now.UTC(),
	}
	if err := s.store.ConfirmRedemption(ctx, r); err != nil {
		return domain.Redemption{}, err
	}

	s.events.Emit(ctx, analytics.EventRedemptionConfirmed, e.UserID, offer.ID, map[string]any{
		"entitlement_id":  e.ID,
		"redemption_id":   r.ID,
		"total_bill":      r.TotalBill.StringFixed(2),
		"discount_amount": r.DiscountAmount.StringFixed(2),
		"final_amount":    r.FinalAmount.StringFixed(2),
		"validator_id":    validatorID,
	})
	s.log.Info("redemption confirmed",
		zap.String("entitlement_id", e.ID), zap.String("redemption_id", r.ID),
		zap.String("validator_id", validatorID))

	return r, nil
}

// Void reverses a confirmed redemption inside the void window: within
// VoidWindow of use and on the same local calendar day, both. The day's
// claim marker is released so the user may claim the offer again; the
// entitlement itself stays VOIDED.
func (s *Service) Void(ctx context.Context, validatorID, entitlementID, reason string) (time.Time, error) {
	if err := CheckVoidReason(reason); err != nil {
		return time.Time{}, err
	}

	e, err := s.store.GetEntitlement(ctx, entitlementID)
	if err != nil {
		return time.Time{}, err
	}
	if _, err := state.Next(e.State, state.EventVoid); err != nil {
		return time.Time{}, err
	}
	if e.UsedAt == nil {
		return time.Time{}, domain.E(domain.KindInternal, "used entitlement has no use timestamp")
	}

	now := s.clk.Now()
	if now.Sub(*e.UsedAt) > s.cfg.VoidWindow || !clock.SameDay(*e.UsedAt, now, s.loc) {
		return time.Time{}, domain.E(domain.KindVoidWindowExpired, "void window has closed")
	}

	if err := s.store.VoidRedemption(ctx, e.ID, now.UTC(), reason); err != nil {
		return time.Time{}, err
	}

	if err := s.quota.Clear(ctx, e.UserID, e.OfferID, e.ClaimDay); err != nil {
		// The index already permits a re-claim; only the fast path stays
		// blocked until midnight.
		s.log.Warn("daily claim marker not released after void",
			zap.String("entitlement_id", e.ID), zap.Error(err))
	}

	s.events.Emit(ctx, analytics.EventRedemptionVoided, e.UserID, e.OfferID, map[string]any{
		"entitlement_id": e.ID,
		"reason":         reason,
		"validator_id":   validatorID,
	})
	s.log.Info("redemption voided",
		zap.String("entitlement_id", e.ID), zap.String("validator_id", validatorID))

	return now.UTC(), nil
}

// CancelValidation lets the owner abort a pending validation, returning
// the entitlement to ACTIVE so it can be proven again.
func (s *Service) CancelValidation(ctx context.Context, userID, entitlementID string) error {
	e, err := s.store.GetEntitlement(ctx, entitlementID)
	if err != nil {
		return err
	}
	if e.UserID != userID {
		return domain.E(domain.KindForbidden, "entitlement belongs to another user")
	}
	released, err := state.Next(e.State, state.EventCancel)
	if err != nil {
		return err
	}
	return s.store.TransitionEntitlement(ctx, e.ID, e.State, released, nil, s.clk.Now())
}

// expireInline flips a stale-but-unswept entitlement to EXPIRED so reads
// and the sweeper agree. Losing the CAS to a racer is fine.
func (s *Service) expireInline(ctx context.Context, e domain.Entitlement, now time.Time) {
	retired, err := state.Next(e.State, state.EventExpire)
	if err != nil {
		return
	}
	err = s.store.TransitionEntitlement(ctx, e.ID, e.State, retired, nil, now)
	if err != nil && !domain.IsKind(err, domain.KindInvalidState) {
		s.log.Warn("inline expire failed", zap.String("entitlement_id", e.ID), zap.Error(err))
	}
}

// CheckVoidReason bounds the void audit note to 10..500 characters.
func CheckVoidReason(reason string) error {
	if n := len(reason); n < 10 || n > 500 {
		return domain.E(domain.KindInvalidArgument, "void reason must be 10 to 500 characters")
	}
	return nil
}
