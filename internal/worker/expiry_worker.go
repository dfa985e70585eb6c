package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PendingExpirer cancels online bookings whose payment grace window has lapsed.
type PendingExpirer interface {
	ExpireStalePending(ctx context.Context) (int, error)
}

// ExpiryWorker periodically releases slots held by unpaid online bookings.
type ExpiryWorker struct {
	expirer  PendingExpirer
	interval time.Duration
	logger   *zerolog.Logger
}

func NewExpiryWorker(expirer PendingExpirer, interval time.Duration, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ExpiryWorker{expirer: expirer, interval: interval, logger: logger}
}

func (w *ExpiryWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("expiry worker started")
	defer w.logger.Info().Msg("expiry worker stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (w *ExpiryWorker) RunOnce(ctx context.Context) {
	n, err := w.expirer.ExpireStalePending(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("expire stale pending bookings")
		return
	}
	if n > 0 {
		w.logger.Info().Int("expired", n).Msg("released unpaid bookings")
	}
}
