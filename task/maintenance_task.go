package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/angas/dkspot/config"
	"github.com/angas/dkspot/database"
)

func NewMaintenanceTask(logger *slog.Logger, db *database.Database, cnfg *config.AppConfig) func() {
	return func() {
		logger.Debug("running maintenance task...")

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()

		if err := db.PurgeLog(ctx, cnfg.Logging.GetDbMaxEntries()); err != nil {
			logger.Error("log maintenance error", slog.Any("error", err))
		}

		if err := db.PurgePipelineRuns(ctx, cnfg.Database.GetRetentionDays()); err != nil {
			logger.Error("pipeline_run maintenance error", slog.Any("error", err))
		}

		logger.Info("maintenance task done")
	}
}
