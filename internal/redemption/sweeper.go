package redemption

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SweepResult counts what one sweep pass changed.
type SweepResult struct {
	Expired  int64
	Released int64
}

// Sweep expires entitlements past their end-of-day horizon, then hands
// reservations the merchant never confirmed back to their owners. Both
// steps are CAS-batched and idempotent; a second pass finds nothing.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.clk.Now()

	expired, err := s.store.ExpireDue(ctx, now, sweepBatchSize)
	if err != nil {
		return SweepResult{}, err
	}

	cutoff := now.Add(-s.cfg.PendingTimeout)
	released, err := s.store.ReleaseStalePending(ctx, cutoff, now, sweepBatchSize)
	if err != nil {
		return SweepResult{Expired: expired}, err
	}

	return SweepResult{Expired: expired, Released: released}, nil
}

// RunSweeper ticks Sweep until ctx is done. Errors are logged and the
// loop keeps going; a bad pass only delays cleanup by one interval.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("sweeper started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			res, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error("sweep pass failed", zap.Error(err))
				continue
			}
			s.log.Debug("sweep pass",
				zap.Int64("expired", res.Expired), zap.Int64("released", res.Released))
		}
	}
}
