package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wandern-app/echo-archiver/internal/echoes"
	"github.com/wandern-app/echo-archiver/internal/pipeline"
	"github.com/wandern-app/echo-archiver/pkg/arweave"
	"github.com/wandern-app/echo-archiver/pkg/config"
	"github.com/wandern-app/echo-archiver/pkg/db"
	"github.com/wandern-app/echo-archiver/pkg/logger"
	"github.com/wandern-app/echo-archiver/pkg/metrics"
	"github.com/wandern-app/echo-archiver/pkg/migrate"
	"github.com/wandern-app/echo-archiver/pkg/moderation"
	"github.com/wandern-app/echo-archiver/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "uploader-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "uploader-worker"

	logg = logger.New(logger.Options{
		ServiceName: "uploader-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	moderationClient, err := moderation.NewClient(cfg.Moderation.AgentURL, moderation.WithTimeout(cfg.Moderation.Timeout))
	if err != nil {
		logg.Error(context.Background(), "failed to create moderation client", err)
		os.Exit(1)
	}

	arweaveClient, err := arweave.NewClient(cfg.Arweave, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create arweave client", err)
		os.Exit(1)
	}

	pipelineService, err := pipeline.NewService(pipeline.ServiceParams{
		Config:     cfg,
		Logger:     logg,
		Store:      echoes.NewRepository(dbClient.DB()),
		Moderation: moderationClient,
		Arweave:    arweaveClient,
		Metrics:    metrics.NewPipelineMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create upload pipeline", err)
		os.Exit(1)
	}

	var runLock pipeline.Lock = pipeline.NoopLock{}
	if cfg.Uploader.RunLockEnabled {
		if !cfg.Redis.Configured() {
			logg.Error(context.Background(), "run lock enabled without redis", errors.New("redis address is required"))
			os.Exit(1)
		}
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()

		runLock, err = pipeline.NewRedisLock(redisClient, redisClient.LockKey("uploader-run"), cfg.Uploader.RunLockTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create run lock", err)
			os.Exit(1)
		}
	}

	service, err := NewService(ServiceParams{
		Config: cfg,
		Logger: logg,
		Runner: pipelineService,
		Lock:   runLock,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create uploader worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "uploader-worker",
	})
	logg.Info(ctx, "starting uploader worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "uploader worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "uploader worker shutting down gracefully")
}
