package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"churchcare/internal/attendance"
	"churchcare/internal/config"
	"churchcare/internal/db"
	"churchcare/internal/hierarchy"
	"churchcare/internal/httpapi"
	"churchcare/internal/jobs"
	"churchcare/internal/logging"
	"churchcare/internal/notify"
	"churchcare/internal/observability"
	"churchcare/internal/risk"
	"churchcare/internal/roster"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer lg.Closer()
	logger := lg.Sugar

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, "churchcare")
	if err != nil {
		logger.Warnw("sentry init failed", "err", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("db connect failed", "err", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		logger.Fatalw("migrations failed", "err", err)
	}

	var (
		queue notify.Queue
		rdb   *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatalw("redis connect failed", "addr", cfg.RedisAddr, "err", err)
		}
		defer rdb.Close()
		queue = notify.NewRedisQueue(rdb, "")
		logger.Infow("notification queue on redis", "addr", cfg.RedisAddr)
	} else {
		queue = notify.NewInMemory(256)
		logger.Infow("notification queue in memory")
	}

	var sender notify.Sender
	if cfg.BotToken != "" {
		tg, err := notify.NewTelegramSender(cfg.BotToken)
		if err != nil {
			logger.Warnw("telegram sender unavailable, persisting only", "err", err)
		} else {
			sender = tg
		}
	}
	dispatcher := notify.NewDispatcher(queue, database, sender, logger)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			observability.CaptureErr(err)
			logger.Errorw("notification dispatcher stopped", "err", err)
		}
	}()

	dir := hierarchy.NewDirectory(database)
	attSvc := attendance.NewService(database, dir, dispatcher, cfg.Location, logger)
	rosSvc := roster.NewService(database, dir, logger)

	runner := risk.NewRunner(database, logger)
	jobs.New(ctx).Every(cfg.RiskRunInterval, "risk_classifier", runner.Run)

	srv := httpapi.New(cfg, database, rdb, attSvc, rosSvc, dir, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Infow("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Fatalw("http server failed", "err", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("http shutdown failed", "err", err)
	}
	logger.Infow("stopped")
}
