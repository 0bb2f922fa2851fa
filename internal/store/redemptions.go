package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/studentverse/redemption/internal/domain"
)

// ConfirmRedemption atomically moves the entitlement from
// PENDING_CONFIRMATION to USED and writes the financial record. The CAS
// admits exactly one confirmation per entitlement; replays lose with
// INVALID_STATE.
func (s *Store) ConfirmRedemption(ctx context.Context, r domain.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		usedAt := r.RedeemedAt
		if err := transitionEntitlement(ctx, tx, r.EntitlementID,
			domain.StatePendingConfirmation, domain.StateUsed, &usedAt, usedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO redemptions (id, entitlement_id, merchant_id, offer_id, user_id,
				validator_id, total_bill, discount_amount, final_amount, offer_type,
				redeemed_at, is_voided, voided_at, void_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, NULL)`,
			r.ID, r.EntitlementID, r.MerchantID, r.OfferID, r.UserID,
			nullString(r.ValidatorID), r.TotalBill.StringFixed(2),
			r.DiscountAmount.StringFixed(2), r.FinalAmount.StringFixed(2),
			string(r.OfferType), fmtTime(r.RedeemedAt))
		if err != nil {
			return fmt.Errorf("insert redemption: %w", err)
		}
		return nil
	})
}

// VoidRedemption atomically moves the entitlement from USED to VOIDED and
// marks the financial record voided. used_at stays as evidence of the
// original redemption.
func (s *Store) VoidRedemption(ctx context.Context, entitlementID string, at time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE entitlements SET state = ?, voided_at = ?, updated_at = ?
			WHERE id = ? AND state = ?`,
			string(domain.StateVoided), fmtTime(at), fmtTime(at),
			entitlementID, string(domain.StateUsed))
		if err != nil {
			return fmt.Errorf("void entitlement: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("void entitlement: %w", err)
		}
		if n == 0 {
			return domain.Ef(domain.KindInvalidState, "entitlement is no longer %s", domain.StateUsed)
		}
		res, err = tx.ExecContext(ctx, `
			UPDATE redemptions SET is_voided = 1, voided_at = ?, void_reason = ?
			WHERE entitlement_id = ? AND is_voided = 0`,
			fmtTime(at), reason, entitlementID)
		if err != nil {
			return fmt.Errorf("void redemption: %w", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("void redemption: %w", err)
		}
		if n == 0 {
			return domain.E(domain.KindInvalidState, "redemption already voided")
		}
		return nil
	})
}

// GetRedemptionByEntitlement returns the redemption written for the given
// entitlement.
func (s *Store) GetRedemptionByEntitlement(ctx context.Context, entitlementID string) (domain.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, entitlement_id, merchant_id, offer_id, user_id, validator_id,
			total_bill, discount_amount, final_amount, offer_type,
			redeemed_at, is_voided, voided_at, void_reason
		FROM redemptions WHERE entitlement_id = ?`, entitlementID)

	r, err := scanRedemption(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Redemption{}, domain.E(domain.KindNotFound, "redemption not found")
	}
	if err != nil {
		return domain.Redemption{}, fmt.Errorf("query redemption: %w", err)
	}
	return r, nil
}

// ListValidatorRedemptions returns redemptions confirmed by the given
// validator, newest first, optionally bounded to [from, to].
func (s *Store) ListValidatorRedemptions(ctx context.Context, validatorID string, from, to *time.Time, limit int) ([]domain.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, entitlement_id, merchant_id, offer_id, user_id, validator_id,
			total_bill, discount_amount, final_amount, offer_type,
			redeemed_at, is_voided, voided_at, void_reason
		FROM redemptions WHERE validator_id = ?`
	args := []any{validatorID}
	if from != nil {
		query += ` AND redeemed_at >= ?`
		args = append(args, fmtTime(*from))
	}
	if to != nil {
		query += ` AND redeemed_at <= ?`
		args = append(args, fmtTime(*to))
	}
	query += ` ORDER BY redeemed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list validator redemptions: %w", err)
	}
	defer rows.Close()

	var out []domain.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SavingsSummary totals the user's non-voided redemptions. Sums run over
// decimals in Go; SQLite would coerce the text amounts to floats.
func (s *Store) SavingsSummary(ctx context.Context, userID string) (domain.SavingsSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT discount_amount, final_amount
		FROM redemptions WHERE user_id = ? AND is_voided = 0`, userID)
	if err != nil {
		return domain.SavingsSummary{}, fmt.Errorf("query savings: %w", err)
	}
	defer rows.Close()

	sum := domain.SavingsSummary{
		TotalSavings: decimal.Zero,
		TotalSpent:   decimal.Zero,
	}
	for rows.Next() {
		var saved, spent decimal.Decimal
		if err := rows.Scan(&saved, &spent); err != nil {
			return domain.SavingsSummary{}, fmt.Errorf("scan savings: %w", err)
		}
		sum.TotalRedemptions++
		sum.TotalSavings = sum.TotalSavings.Add(saved)
		sum.TotalSpent = sum.TotalSpent.Add(spent)
	}
	return sum, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRedemption(sc scanner) (domain.Redemption, error) {
	var (
		r           domain.Redemption
		validatorID sql.NullString
		offerType   string
		redeemedAt  string
		voidedAt    sql.NullString
		voidReason  sql.NullString
	)
	err := sc.Scan(&r.ID, &r.EntitlementID, &r.MerchantID, &r.OfferID, &r.UserID,
		&validatorID, &r.TotalBill, &r.DiscountAmount, &r.FinalAmount, &offerType,
		&redeemedAt, &r.IsVoided, &voidedAt, &voidReason)
	if err != nil {
		return domain.Redemption{}, err
	}
	r.ValidatorID = validatorID.String
	r.OfferType = domain.OfferType(offerType)
	r.RedeemedAt = parseTime(redeemedAt)
	r.VoidedAt = timePtr(voidedAt)
	r.VoidReason = voidReason.String
	return r, nil
}
