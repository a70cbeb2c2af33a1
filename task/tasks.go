package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/angas/dkspot/chart"
	"github.com/angas/dkspot/config"
	"github.com/angas/dkspot/database"
	"github.com/angas/dkspot/metrics"
	"github.com/angas/dkspot/publish"
	"github.com/angas/dkspot/types"
	"github.com/robfig/cron/v3"
)

type Tasks struct {
	cron            *cron.Cron
	cnfg            *config.AppConfig
	startup         sync.WaitGroup
	PriceChartTask  func()
	MaintenanceTask func()
}

func NewTasks(
	db *database.Database,
	provider types.EnergyPriceProvider,
	renderer *chart.Renderer,
	publisher publish.Publisher,
	cnfg *config.AppConfig,
) *Tasks {
	logger := slog.Default().With("module", "tasks")
	cronLogger := cronLog{logger: logger.With(slog.String("component", "cron"))}

	priceChart := NewPriceChartTask(
		logger.With(slog.String("task", "price_chart")),
		provider,
		renderer,
		cnfg.Pipeline,
		cnfg.Schedule.Timeout).
		WithMetrics(metrics.Default()).
		WithPublisher(publisher)
	if db != nil {
		priceChart.WithRunStore(db)
	}

	t := &Tasks{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		cnfg:           cnfg,
		PriceChartTask: priceChart.Func(),
	}
	if db != nil {
		t.MaintenanceTask = NewMaintenanceTask(logger.With(slog.String("task", "maintenance")), db, cnfg)
	}
	return t
}

// Run schedules the jobs and starts the first price chart run right away so
// the chart exists before the first tick.
func (t *Tasks) Run() error {
	priceJob, err := t.cron.AddFunc(t.cnfg.Schedule.RunAt, t.PriceChartTask)
	if err != nil {
		return fmt.Errorf("schedule price chart task %q: %w", t.cnfg.Schedule.RunAt, err)
	}
	if t.MaintenanceTask != nil {
		if _, err := t.cron.AddFunc(t.cnfg.Schedule.MaintenanceAt, t.MaintenanceTask); err != nil {
			return fmt.Errorf("schedule maintenance task %q: %w", t.cnfg.Schedule.MaintenanceAt, err)
		}
	}
	t.cron.Start()

	// Going through the wrapped job keeps the immediate run from overlapping a tick
	job := t.cron.Entry(priceJob).WrappedJob
	t.startup.Add(1)
	go func() {
		defer t.startup.Done()
		job.Run()
	}()
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs,
// including the startup run, have finished.
func (t *Tasks) Stop() context.Context {
	cronCtx := t.cron.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronCtx.Done()
		t.startup.Wait()
		cancel()
	}()
	return ctx
}

// cronLog routes the scheduler's own messages to slog.
type cronLog struct {
	logger *slog.Logger
}

func (l cronLog) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{slog.Any("error", err)}, keysAndValues...)...)
}
