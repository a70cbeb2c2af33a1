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
	"github.com/angas/dkspot/database"
	"github.com/angas/dkspot/entsoe"
	"github.com/angas/dkspot/logging"
	"github.com/angas/dkspot/task"
)

// Runs the price chart schedule without the web server, for setups where
// the chart file is served by something else.
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consoleHandler := logging.NewConsoleHandler(os.Stdout, cnfg.Logging.GetConsoleLevel())
	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)
	db.SetLogger(logger.With("module", "database"))

	renderer, err := chart.NewRenderer(false)
	if err != nil {
		panic(err)
	}

	provider := entsoe.New(cnfg.Entsoe.BaseURL, cnfg.Entsoe.ApiKey, cnfg.Entsoe.Timeout)
	tasks := task.NewTasks(db, provider, renderer, nil, cnfg)
	if err := tasks.Run(); err != nil {
		panic(err)
	}

	<-ctx.Done()
	logger.Info("scheduler is shutting down...")
	<-tasks.Stop().Done()
}
