package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/studentverse/redemption/internal/domain"
)

// CreateEntitlement inserts a freshly-claimed entitlement. A second live
// claim for the same (user, offer, local day) trips the partial unique
// index and reports DAILY_LIMIT.
func (s *Store) CreateEntitlement(ctx context.Context, e domain.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entitlements (id, user_id, offer_id, state, claimed_at, claim_day,
			expires_at, used_at, voided_at, device_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.OfferID, string(e.State), fmtTime(e.ClaimedAt), e.ClaimDay,
		fmtTime(e.ExpiresAt), nullTime(e.UsedAt), nullTime(e.VoidedAt), e.DeviceID,
		fmtTime(e.CreatedAt), fmtTime(e.UpdatedAt),
	)
	if err != nil {
		if isDailyClaimConflict(err) {
			return domain.E(domain.KindDailyLimit, "offer already claimed today")
		}
		return fmt.Errorf("insert entitlement: %w", err)
	}
	return nil
}

// GetEntitlement returns the entitlement with the given id.
func (s *Store) GetEntitlement(ctx context.Context, id string) (domain.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getEntitlement(ctx, s.db, id)
}

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getEntitlement(ctx context.Context, db queryRower, id string) (domain.Entitlement, error) {
	var (
		e         domain.Entitlement
		state     string
		claimedAt string
		expiresAt string
		usedAt    sql.NullString
		voidedAt  sql.NullString
		createdAt string
		updatedAt string
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, offer_id, state, claimed_at, claim_day, expires_at,
			used_at, voided_at, device_id, created_at, updated_at
		FROM entitlements WHERE id = ?`, id,
	).Scan(&e.ID, &e.UserID, &e.OfferID, &state, &claimedAt, &e.ClaimDay, &expiresAt,
		&usedAt, &voidedAt, &e.DeviceID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entitlement{}, domain.E(domain.KindNotFound, "entitlement not found")
	}
	if err != nil {
		return domain.Entitlement{}, fmt.Errorf("query entitlement: %w", err)
	}
	e.State = domain.State(state)
	e.ClaimedAt = parseTime(claimedAt)
	e.ExpiresAt = parseTime(expiresAt)
	e.UsedAt = timePtr(usedAt)
	e.VoidedAt = timePtr(voidedAt)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

// TransitionEntitlement moves id from one state to another with a single
// compare-and-swap UPDATE. A nil usedAt leaves the used_at column alone.
// Losing the swap reports INVALID_STATE; exactly one racer can win.
func (s *Store) TransitionEntitlement(ctx context.Context, id string, from, to domain.State, usedAt *time.Time, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return transitionEntitlement(ctx, s.db, id, from, to, usedAt, at)
}

func transitionEntitlement(ctx context.Context, db execer, id string, from, to domain.State, usedAt *time.Time, at time.Time) error {
	var (
		res sql.Result
		err error
	)
	if usedAt != nil {
		res, err = db.ExecContext(ctx, `
			UPDATE entitlements SET state = ?, used_at = ?, updated_at = ?
			WHERE id = ? AND state = ?`,
			string(to), fmtTime(*usedAt), fmtTime(at), id, string(from))
	} else {
		res, err = db.ExecContext(ctx, `
			UPDATE entitlements SET state = ?, updated_at = ?
			WHERE id = ? AND state = ?`,
			string(to), fmtTime(at), id, string(from))
	}
	if err != nil {
		return fmt.Errorf("transition entitlement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition entitlement: %w", err)
	}
	if n == 0 {
		return domain.Ef(domain.KindInvalidState, "entitlement is no longer %s", from)
	}
	return nil
}

// ListEntitlements returns the user's entitlements, newest claim first,
// with offer and merchant display fields. An empty state matches all.
func (s *Store) ListEntitlements(ctx context.Context, userID string, state domain.State, limit int) ([]domain.EntitlementSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT e.id, e.offer_id, o.title, m.name, e.state, e.claimed_at, e.expires_at
		FROM entitlements e
		JOIN offers o ON o.id = e.offer_id
		JOIN merchants m ON m.id = o.merchant_id
		WHERE e.user_id = ?`
	args := []any{userID}
	if state != "" {
		query += ` AND e.state = ?`
		args = append(args, string(state))
	}
	query += ` ORDER BY e.claimed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	defer rows.Close()

	var out []domain.EntitlementSummary
	for rows.Next() {
		var (
			es        domain.EntitlementSummary
			st        string
			claimedAt string
			expiresAt string
		)
		if err := rows.Scan(&es.ID, &es.OfferID, &es.OfferTitle, &es.MerchantName,
			&st, &claimedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan entitlement: %w", err)
		}
		es.State = domain.State(st)
		es.ClaimedAt = parseTime(claimedAt)
		es.ExpiresAt = parseTime(expiresAt)
		out = append(out, es)
	}
	return out, rows.Err()
}

// ExpireDue flips entitlements whose expiry has passed to EXPIRED.
// Returns how many rows moved.
func (s *Store) ExpireDue(ctx context.Context, now time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 500
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE entitlements SET state = 'expired', updated_at = ?
		WHERE id IN (
			SELECT id FROM entitlements
			WHERE state IN ('active', 'pending_confirmation') AND expires_at <= ?
			LIMIT ?
		)
		AND state IN ('active', 'pending_confirmation')`,
		fmtTime(now), fmtTime(now), limit)
	if err != nil {
		return 0, fmt.Errorf("expire due entitlements: %w", err)
	}
	return res.RowsAffected()
}

// ReleaseStalePending returns reservations the merchant never confirmed
// to ACTIVE so the owner can present again. Rows already past expiry are
// left for ExpireDue.
func (s *Store) ReleaseStalePending(ctx context.Context, cutoff, now time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 500
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE entitlements SET state = 'active', updated_at = ?
		WHERE id IN (
			SELECT id FROM entitlements
			WHERE state = 'pending_confirmation' AND updated_at <= ? AND expires_at > ?
			LIMIT ?
		)
		AND state = 'pending_confirmation'`,
		fmtTime(now), fmtTime(cutoff), fmtTime(now), limit)
	if err != nil {
		return 0, fmt.Errorf("release stale pending: %w", err)
	}
	return res.RowsAffected()
}
