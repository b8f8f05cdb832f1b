package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"topearner/internal/amqp"
	"topearner/internal/config"
	"topearner/internal/log"
	"topearner/internal/services"
	"topearner/internal/tasks"
	"topearner/internal/tasks/httpapi"
	"topearner/internal/tasks/memory"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	level, _ := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{Level: level, Component: log.ComponentApp})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.WithComponent(log.ComponentConfig).Error("Configuration validation failed", log.FieldError, err)
		return 1
	}

	logger.Info("Starting topearner",
		log.FieldOperation, log.OpStartup,
		log.FieldBackend, cfg.TaskBackend,
		"run_interval", cfg.RunInterval)

	source, sink, err := newTaskBackend(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize task backend", log.FieldError, err, log.FieldBackend, cfg.TaskBackend)
		return 1
	}
	logger.Info("Task backend initialized", log.FieldBackend, cfg.TaskBackend)

	// Run events are optional; the runner works without a broker
	var events services.RunEventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, run events disabled", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	runner := services.NewTaskRunner(source, sink, events, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunInterval == 0 {
		if _, err := runner.Run(ctx, time.Now()); err != nil {
			return 1
		}
		return 0
	}

	logger.Info("Periodic runs configured", "interval", cfg.RunInterval)
	runPeriodically(ctx, runner, cfg.RunInterval, logger)
	logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
	return 0
}

func newTaskBackend(cfg *config.Config, logger *log.Logger) (tasks.TaskSource, tasks.ResultSink, error) {
	switch cfg.TaskBackend {
	case config.BackendFile:
		store := memory.NewFromFile(cfg.TaskFile)
		return store, store, nil
	case config.BackendHTTP:
		client, err := httpapi.New(cfg.TaskAPIURL, cfg.HTTPTimeout, cfg.HTTPMaxRetries, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	default:
		return nil, nil, errors.New("unknown task backend " + cfg.TaskBackend)
	}
}

// runPeriodically runs once immediately and then on every tick until ctx is done.
func runPeriodically(ctx context.Context, runner *services.TaskRunner, interval time.Duration, logger *log.Logger) {
	// Failures are logged by the runner; the next tick starts a fresh run
	_, _ = runner.Run(ctx, time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
			return
		case now := <-ticker.C:
			_, _ = runner.Run(ctx, now)
		}
	}
}
