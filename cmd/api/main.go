package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wandern-app/echo-archiver/api/routes"
	"github.com/wandern-app/echo-archiver/internal/echoes"
	"github.com/wandern-app/echo-archiver/internal/pipeline"
	"github.com/wandern-app/echo-archiver/pkg/arweave"
	"github.com/wandern-app/echo-archiver/pkg/config"
	"github.com/wandern-app/echo-archiver/pkg/db"
	"github.com/wandern-app/echo-archiver/pkg/logger"
	"github.com/wandern-app/echo-archiver/pkg/metrics"
	"github.com/wandern-app/echo-archiver/pkg/migrate"
	"github.com/wandern-app/echo-archiver/pkg/moderation"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	service, err := pipeline.NewService(pipeline.ServiceParams{
		Config:     cfg,
		Logger:     logg,
		Store:      echoes.NewRepository(dbClient.DB()),
		Moderation: moderationClient,
		Arweave:    arweaveClient,
		Metrics:    pipelineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create upload pipeline", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, service, registry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
