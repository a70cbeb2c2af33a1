package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/angas/dkspot/chart"
	"github.com/angas/dkspot/config"
	"github.com/angas/dkspot/entsoe"
	"github.com/angas/dkspot/logging"
	"github.com/angas/dkspot/task"
)

// Renders the chart once and exits, non-zero when the run failed.
func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if err := cnfg.Validate(); err != nil {
		panic(err)
	}

	logger := slog.New(logging.NewConsoleHandler(os.Stdout, cnfg.Logging.GetConsoleLevel()))
	slog.SetDefault(logger)

	if err := run(logger, cnfg); err != nil {
		os.Exit(1)
	}
	logger.Info("chart written", slog.String("path", cnfg.Pipeline.ChartPath()))
}

func run(logger *slog.Logger, cnfg *config.AppConfig) error {
	renderer, err := chart.NewRenderer(false)
	if err != nil {
		logger.Error("failed to load chart template", slog.Any("error", err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cnfg.Schedule.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cnfg.Schedule.Timeout)
		defer cancel()
	}

	provider := entsoe.New(cnfg.Entsoe.BaseURL, cnfg.Entsoe.ApiKey, cnfg.Entsoe.Timeout)
	pipeline := task.NewPriceChartTask(logger.With(slog.String("task", "price_chart")), provider, renderer, cnfg.Pipeline, cnfg.Schedule.Timeout)
	return pipeline.RunAndRecord(ctx)
}
