package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/ratelimit"
	"github.com/example/storefront/internal/routes"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", logger.Err(err))
		os.Exit(1)
	}

	log := logger.New(cfg.IsProduction())
	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", logger.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := database.DefaultOptions
	opts.Debug = !cfg.IsProduction()
	db, err := database.Connect(cfg.DatabaseURL, opts, log)
	if err != nil {
		return err
	}
	defer database.Close(db, log)

	var store ratelimit.Store
	if cfg.RedisAddr != "" {
		client, err := ratelimit.Connect(ctx, ratelimit.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer closeRedis(client, log)
		store = ratelimit.NewRedisStore(client)
		log.Info("rate limits backed by redis", slog.String("addr", cfg.RedisAddr))
	} else {
		store = ratelimit.NewMemoryStore()
		log.Warn("REDIS_ADDR not set, rate limits are per-process")
	}

	deps := routes.Dependencies{
		DB:             db,
		Config:         cfg,
		Logger:         log,
		RateLimitStore: store,
		Notifier:       services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, log),
		Metrics:        metrics.New(),
		AccessLog:      os.Stdout,
	}

	if cfg.MailgunDomain != "" && cfg.MailgunAPIKey != "" {
		deps.Mailer = services.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase, cfg.MailFrom)
	} else {
		deps.Mailer = services.NoopMailer{Log: log}
	}

	switch cfg.StorageDriver {
	case "s3":
		bucket := storage.NewS3(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		defer bucket.Close()
		deps.Storage = bucket
	default:
		local, err := storage.NewLocal(cfg.UploadDir)
		if err != nil {
			return err
		}
		deps.Storage = local
		deps.UploadDir = local.Root()
	}

	app := routes.NewApp(deps)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("port", cfg.AppPort), slog.String("env", cfg.AppEnv))
		errCh <- app.Listen(":" + cfg.AppPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func closeRedis(client *redis.Client, log *slog.Logger) {
	if err := client.Close(); err != nil {
		log.Error("failed to close redis", logger.Err(err))
	}
}
