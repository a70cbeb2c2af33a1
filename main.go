package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angas/dkspot/chart"
	"github.com/angas/dkspot/config"
	"github.com/angas/dkspot/database"
	"github.com/angas/dkspot/entsoe"
	"github.com/angas/dkspot/logging"
	"github.com/angas/dkspot/metrics"
	"github.com/angas/dkspot/publish"
	"github.com/angas/dkspot/task"
	"github.com/angas/dkspot/www"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	if err := cnfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleHandler := logging.NewConsoleHandler(os.Stdout, cnfg.Logging.GetConsoleLevel())
	slog.New(consoleHandler).Debug("dkspot is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	provider := entsoe.New(cnfg.Entsoe.BaseURL, cnfg.Entsoe.ApiKey, cnfg.Entsoe.Timeout)

	renderer, err := chart.NewRenderer(true)
	if err != nil {
		panic(fmt.Sprintf("failed to load chart template: %v", err))
	}

	var publisher publish.Publisher
	if cnfg.Mqtt.Enabled() {
		mq := publish.NewMqtt(
			cnfg.Mqtt.Broker,
			cnfg.Mqtt.Port,
			cnfg.Mqtt.ClientID,
			cnfg.Mqtt.Username,
			cnfg.Mqtt.Password,
			cnfg.Mqtt.TopicPrefix)
		if err := mq.Connect(); err != nil {
			logger.Warn("mqtt connection failed, prices will not be published", slog.Any("error", err))
		} else {
			defer mq.Disconnect()
			publisher = mq
		}
	}

	tasks := task.NewTasks(db, provider, renderer, publisher, cnfg)
	if err := tasks.Run(); err != nil {
		panic(err.Error())
	}
	defer func() {
		// Waits for a running job to finish
		<-tasks.Stop().Done()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	server := www.NewServer(cnfg.Api, cnfg.Pipeline.ChartPath(), db, metrics.Default(), true)
	if err := server.Run(ctx); err != nil {
		exitWithError(logger, err)
	}
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}
