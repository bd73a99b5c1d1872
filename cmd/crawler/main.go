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
	"darkgravity/internal/publisher"
	"darkgravity/internal/scheduler"
	"darkgravity/internal/service"
	"darkgravity/internal/source/reddit"
	"darkgravity/internal/source/youtube"
	"darkgravity/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single crawl and exit")
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

	syncMode := cfg.Crawler.Mode == "sync"

	// The chain only runs inline in sync mode and when self-healing a
	// corrupted record; event mode defers new stories to the analyzer.
	providers := analysis.BuildProviders(cfg.AI)
	chain := analysis.NewChain(providers, logger)
	logger.Info("provider chain built", "providers", len(providers), "mode", cfg.Crawler.Mode)

	var pub service.Publisher
	if !syncMode {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	var sources []service.Source

	sources = append(sources, reddit.New(reddit.Config{
		BaseURL:    cfg.Reddit.BaseURL,
		Subreddits: cfg.Reddit.Subreddits,
		Limit:      cfg.Reddit.Limit,
		Timeout:    cfg.Reddit.Timeout,
		UserAgent:  cfg.Reddit.UserAgent,
	}, logger))

	if cfg.YouTube.APIKey != "" {
		ytSource, err := youtube.New(ctx, youtube.Config{
			APIKey:  cfg.YouTube.APIKey,
			Queries: cfg.YouTube.Queries,
			Limit:   cfg.YouTube.Limit,
		}, logger)
		if err != nil {
			logger.Error("failed to init youtube source", "error", err)
			os.Exit(1)
		}
		sources = append(sources, ytSource)
	} else {
		logger.Info("youtube source disabled, no api key")
	}

	ingestService := service.NewIngestService(storyStore, chain, pub, logger, syncMode)
	crawlService := service.NewCrawlService(sources, ingestService, logger)

	if *once {
		if _, err := crawlService.Crawl(ctx); err != nil {
			logger.Error("crawl failed", "error", err)
			os.Exit(1)
		}
		return
	}

	sched := scheduler.NewScheduler(crawlService, cfg.Crawler.Interval, logger)

	logger.Info("starting crawler",
		"sources", len(sources),
		"interval", cfg.Crawler.Interval,
		"mode", cfg.Crawler.Mode,
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
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
