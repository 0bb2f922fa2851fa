package redemption

import (
	"context"
	"time"

	"github.com/studentverse/redemption/internal/domain"
	"github.com/studentverse/redemption/internal/ratelimit"
)

// Get returns one of the caller's entitlements.
func (s *Service) Get(ctx context.Context, userID, entitlementID string) (domain.Entitlement, error) {
	e, err := s.store.GetEntitlement(ctx, entitlementID)
	if err != nil {
		return domain.Entitlement{}, err
	}
	if e.UserID != userID {
		return domain.Entitlement{}, domain.E(domain.KindForbidden, "entitlement belongs to another user")
	}
	return e, nil
}

// List returns the caller's entitlements, newest first. An empty state
// matches all states.
func (s *Service) List(ctx context.Context, userID string, state domain.State, limit int) ([]domain.EntitlementSummary, error) {
	if state != "" && !state.Valid() {
		return nil, domain.Ef(domain.KindInvalidArgument, "unknown state %q", state)
	}
	return s.store.ListEntitlements(ctx, userID, state, limit)
}

// Savings totals the caller's confirmed, non-voided redemptions.
func (s *Service) Savings(ctx context.Context, userID string) (domain.SavingsSummary, error) {
	return s.store.SavingsSummary(ctx, userID)
}

// ValidatorHistory lists redemptions the validator confirmed, newest
// first, optionally bounded to [from, to]. Voided rows are included and
// flagged.
func (s *Service) ValidatorHistory(ctx context.Context, validatorID string, from, to *time.Time, limit int) ([]domain.Redemption, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, domain.E(domain.KindInvalidArgument, "history range ends before it starts")
	}
	return s.store.ListValidatorRedemptions(ctx, validatorID, from, to, limit)
}

// Limits reports the caller's remaining rate-limit budgets.
func (s *Service) Limits(ctx context.Context, userID string) (ratelimit.Remaining, error) {
	return s.limiter.Remaining(ctx, userID)
}
