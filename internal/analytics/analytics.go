// Package analytics records product events. Emission is fire-and-forget:
// a failed write is logged and swallowed, never surfaced to the caller.
package analytics

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studentverse/redemption/internal/clock"
	"github.com/studentverse/redemption/internal/domain"
)

// Event types written by the redemption flow.
const (
	EventOfferClaim          = "offer_claim"
	EventRedemptionConfirmed = "redemption_confirmed"
	EventRedemptionVoided    = "redemption_voided"
)

// Sink persists events. *store.Store satisfies it.
type Sink interface {
	InsertAnalyticsEvent(ctx context.Context, ev domain.AnalyticsEvent) error
}

type Recorder struct {
	sink Sink
	clk  clock.Clock
	log  *zap.Logger
}

func New(sink Sink, clk clock.Clock, log *zap.Logger) *Recorder {
	return &Recorder{sink: sink, clk: clk, log: log.With(zap.String("component", "analytics"))}
}

// Emit appends one event. userID and offerID may be empty.
func (r *Recorder) Emit(ctx context.Context, eventType, userID, offerID string, payload map[string]any) {
	body := []byte("{}")
	if len(payload) > 0 {
		b, err := json.Marshal(payload)
		if err != nil {
			r.log.Warn("payload not serializable, keeping event without it",
				zap.String("event_type", eventType), zap.Error(err))
		} else {
			body = b
		}
	}

	ev := domain.AnalyticsEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		UserID:    userID,
		OfferID:   offerID,
		Payload:   body,
		CreatedAt: r.clk.Now().UTC(),
	}
	if err := r.sink.InsertAnalyticsEvent(ctx, ev); err != nil {
		r.log.Warn("analytics event dropped",
			zap.String("event_type", eventType), zap.Error(err))
	}
}
