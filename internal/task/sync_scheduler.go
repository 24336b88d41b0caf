package task

import (
	"context"
	"errors"

	"github.com/intentdesk/IntentDesk/internal/nlusync"
	"github.com/intentdesk/IntentDesk/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartSyncScheduler runs intent reconciliation on the given cron schedule.
// An empty schedule disables the scheduler. An overlapping manual run is
// normal and just skips the tick.
func StartSyncScheduler(engine *nlusync.Engine, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		logger.Info("sync scheduler disabled")
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		result, err := engine.ReconcileAll(context.Background())
		if err != nil {
			if errors.Is(err, nlusync.ErrSyncInFlight) {
				logger.Debug("scheduled sync skipped, run already in progress")
				return
			}
			logger.Error("scheduled sync failed", zap.Error(err))
			return
		}
		if result.SyncedCount > 0 || result.ErrorCount > 0 {
			logger.Info("scheduled sync completed",
				zap.Int("synced", result.SyncedCount),
				zap.Int("errors", result.ErrorCount))
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	logger.Info("sync scheduler started", zap.String("schedule", schedule))
	return c, nil
}
