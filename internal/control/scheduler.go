package control

import (
	"context"
	"errors"
	"time"

	"strmsync/internal/logging"
	"strmsync/internal/reconcile"
	"strmsync/internal/services"
)

// Schedule triggers a scheduled run immediately and then every interval
// until ctx is done. Suppression and an already active run skip the tick.
func (s *Service) Schedule(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return services.Wrap(services.ErrConfiguration, "control", "schedule", "sync.schedule_interval_minutes must be positive", nil)
	}
	s.logger.Info("scheduler started", logging.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	result, err := s.Run(ctx, reconcile.TriggerScheduled, RunOptions{})
	switch {
	case errors.Is(err, services.ErrSuppressed):
		s.logger.Info("scheduled run skipped; library was cleaned",
			logging.String(logging.FieldErrorHint, "run 'strmsync run' to resume scheduled syncs"))
	case errors.Is(err, services.ErrAlreadyRunning):
		s.logger.Info("scheduled run skipped; another run is active")
	case err != nil && result == nil:
		logging.WarnWithContext(s.logger, "scheduled run could not start", "scheduled_run_failed",
			logging.Error(err))
	}
}
