package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/studentverse/redemption/internal/domain"
)

// CreateUser inserts a platform account. Used by seeding and tests; the
// redemption core itself only reads users.
func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, role, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FirstName, u.LastName, string(u.Role), u.Status, fmtTime(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns the user with the given id.
func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		u         domain.User
		role      string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, role, status, created_at
		FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &role, &u.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.E(domain.KindNotFound, "user not found")
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("query user: %w", err)
	}
	u.Role = domain.Role(role)
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

// CreateMerchant inserts a merchant.
func (s *Store) CreateMerchant(ctx context.Context, m domain.Merchant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchants (id, name, geo, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Geo, m.IsActive, fmtTime(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert merchant: %w", err)
	}
	return nil
}

// GetMerchant returns the merchant with the given id.
func (s *Store) GetMerchant(ctx context.Context, id string) (domain.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		m         domain.Merchant
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, geo, is_active, created_at FROM merchants WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &m.Geo, &m.IsActive, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Merchant{}, domain.E(domain.KindNotFound, "merchant not found")
	}
	if err != nil {
		return domain.Merchant{}, fmt.Errorf("query merchant: %w", err)
	}
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

// CreateOffer inserts an offer.
func (s *Store) CreateOffer(ctx context.Context, o domain.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offers (id, merchant_id, category_id, title, description, offer_type,
			discount_value, original_price, discounted_price, valid_from, valid_until,
			time_from, time_until, valid_weekdays, max_total_claims, total_claims,
			is_active, is_featured, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.MerchantID, o.CategoryID, o.Title, o.Description, string(o.Type),
		o.DiscountValue, o.OriginalPrice, o.DiscountedPrice, nullTime(o.ValidFrom), nullTime(o.ValidUntil),
		o.TimeFrom, o.TimeUntil, o.ValidWeekdays, o.MaxTotalClaims, o.TotalClaims,
		o.IsActive, o.IsFeatured, fmtTime(o.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

// GetOffer returns the offer with the given id.
func (s *Store) GetOffer(ctx context.Context, id string) (domain.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		o          domain.Offer
		offerType  string
		validFrom  sql.NullString
		validUntil sql.NullString
		createdAt  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, merchant_id, category_id, title, description, offer_type, discount_value,
			original_price, discounted_price, valid_from, valid_until,
			time_from, time_until, valid_weekdays, max_total_claims, total_claims,
			is_active, is_featured, created_at
		FROM offers WHERE id = ?`, id,
	).Scan(&o.ID, &o.MerchantID, &o.CategoryID, &o.Title, &o.Description, &offerType, &o.DiscountValue,
		&o.OriginalPrice, &o.DiscountedPrice, &validFrom, &validUntil,
		&o.TimeFrom, &o.TimeUntil, &o.ValidWeekdays, &o.MaxTotalClaims, &o.TotalClaims,
		&o.IsActive, &o.IsFeatured, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Offer{}, domain.E(domain.KindNotFound, "offer not found")
	}
	if err != nil {
		return domain.Offer{}, fmt.Errorf("query offer: %w", err)
	}
	o.Type = domain.OfferType(offerType)
	o.ValidFrom = timePtr(validFrom)
	o.ValidUntil = timePtr(validUntil)
	o.CreatedAt = parseTime(createdAt)
	return o, nil
}

// IncrementOfferClaims bumps the claim counter. Best effort; the counter
// is advisory and checked again on the next claim.
func (s *Store) IncrementOfferClaims(ctx context.Context, offerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE offers SET total_claims = total_claims + 1 WHERE id = ?`, offerID)
	if err != nil {
		return fmt.Errorf("increment offer claims: %w", err)
	}
	return nil
}
