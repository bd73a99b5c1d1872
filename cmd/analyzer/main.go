package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"darkgravity/internal/analysis"
	"darkgravity/internal/config"
	"darkgravity/internal/consumer"
	"darkgravity/internal/service"
	"darkgravity/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	repair := flag.Bool("repair", false, "run the repair sweep and exit")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	storyStore := postgres.NewStoryStore(db)
	if err := storyStore.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	txManager := postgres.NewTransactionManager(db)

	providers := analysis.BuildProviders(cfg.AI)
	chain := analysis.NewChain(providers, logger)
	logger.Info("provider chain built", "providers", len(providers))

	if *repair {
		repairService := service.NewRepairService(storyStore, chain, txManager, logger)
		if _, err := repairService.Repair(ctx); err != nil {
			logger.Error("repair sweep failed", "error", err)
			os.Exit(1)
		}
		return
	}

	rabbitMQ, err := consumer.NewRabbitMQ(consumer.Config{
		URL:           cfg.RabbitMQ.URL,
		Exchange:      cfg.RabbitMQ.Exchange,
		RoutingKey:    cfg.RabbitMQ.RoutingKey,
		QueueName:     cfg.RabbitMQ.QueueName,
		MaxRetries:    cfg.Consumer.MaxRetries,
		RetryInterval: cfg.Consumer.RetryInterval,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	analyzeService := service.NewAnalyzeService(storyStore, chain, logger)

	logger.Info("starting analyzer",
		"queue", cfg.RabbitMQ.QueueName,
		"max_retries", cfg.Consumer.MaxRetries,
	)

	if err := rabbitMQ.Consume(ctx, analyzeService.HandleStoryFetched); err != nil && err != context.Canceled {
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
