package settlement

import (
	"context"
	"log/slog"
	"time"

	"inspekta/internal/audit"
	"inspekta/internal/booking/models"
	"inspekta/internal/ledger"
)

// Sweeper periodically moves fees pending → locked for bookings that have
// entered the 24-hour pre-inspection window. The phase itself is derived and
// needs no sweep; only the money placement does.
type Sweeper struct {
	engine   *Service
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(engine *Service, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{engine: engine, interval: interval, logger: logger}
}

// Run sweeps on a fixed interval until the context is cancelled. A failed
// sweep is logged and retried on the next tick; individual booking failures
// never abort the pass.
func (w *Sweeper) Run(ctx context.Context) {
	w.logger.InfoContext(ctx, "fee lock sweeper started", "interval", w.interval.String())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "fee lock sweeper stopped")
			return
		case <-ticker.C:
			if err := w.engine.SweepLocks(ctx); err != nil {
				w.logger.ErrorContext(ctx, "fee lock sweep failed", "error", err.Error())
			}
		}
	}
}

// SweepLocks moves the fee of every booking inside the lock window from
// pending to locked. Each booking is handled under its per-booking lock so a
// concurrent verify or cancel cannot race the move.
func (s *Service) SweepLocks(ctx context.Context) error {
	candidates, err := s.bookings.ListFeePending(ctx)
	if err != nil {
		return err
	}

	var swept int
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if candidate.PhaseAt(s.clock()) != models.PhaseLocked {
			continue
		}
		if err := s.lockFee(ctx, candidate); err != nil {
			s.logger.ErrorContext(ctx, "failed to lock fee",
				"booking_id", candidate.ID.String(), "error", err.Error())
			continue
		}
		swept++
	}
	if swept > 0 {
		s.logger.InfoContext(ctx, "fee lock sweep complete", "locked", swept)
	}
	return nil
}

func (s *Service) lockFee(ctx context.Context, stale *models.Booking) error {
	unlock := s.locks.lock(stale.ID)
	defer unlock()

	// Re-read under the lock: a verify or cancel may have moved the fee
	// since the listing.
	b, err := s.bookings.FindByID(ctx, stale.ID)
	if err != nil {
		return err
	}
	if b.FeeBucket != models.FeeBucketPending || b.PhaseAt(s.clock()) != models.PhaseLocked {
		return nil
	}

	if err := s.ledger.Move(ctx, b.AgentRef, ledger.BucketPending, ledger.BucketLocked, b.Fee); err != nil {
		return err
	}
	if err := s.bookings.AdvanceFeeBucket(ctx, b.ID, models.FeeBucketPending, models.FeeBucketLocked); err != nil {
		// Nothing else mutates the bucket under this lock, so a miss here
		// means the stores disagree. Unwind the money and alert.
		if moveBack := s.ledger.Move(ctx, b.AgentRef, ledger.BucketLocked, ledger.BucketPending, b.Fee); moveBack != nil {
			s.reportInvariant(ctx, "failed to unwind locked move after bucket advance failure",
				"booking_id", b.ID.String(), "error", moveBack.Error())
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.IncrementFeesLocked()
	}
	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionFeeLocked,
		BookingID: b.ID,
		ClientRef: b.ClientRef,
		AgentRef:  b.AgentRef,
		Amount:    b.Fee,
	})
	locked := *b
	locked.FeeBucket = models.FeeBucketLocked
	s.notify(ctx, NotifyBookingLocked, &locked)
	return nil
}
