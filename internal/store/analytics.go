package store

import (
	"context"
	"fmt"

	"github.com/studentverse/redemption/internal/domain"
)

// InsertAnalyticsEvent appends a product analytics record.
func (s *Store) InsertAnalyticsEvent(ctx context.Context, ev domain.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := string(ev.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics_events (id, event_type, user_id, offer_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.EventType, nullString(ev.UserID), nullString(ev.OfferID),
		payload, fmtTime(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

// CountAnalyticsEvents reports how many events of a type were recorded.
func (s *Store) CountAnalyticsEvents(ctx context.Context, eventType string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analytics_events WHERE event_type = ?`, eventType,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count analytics events: %w", err)
	}
	return n, nil
}
