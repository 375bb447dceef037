package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/ecoride-app/ecoride-backend/pkg/auditlog"
	"github.com/ecoride-app/ecoride-backend/pkg/config"
	"github.com/ecoride-app/ecoride-backend/pkg/db"
	"github.com/ecoride-app/ecoride-backend/pkg/logger"
	"github.com/ecoride-app/ecoride-backend/pkg/migrate"
	"github.com/ecoride-app/ecoride-backend/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "audit-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "audit-publisher",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	auditPublisher := pubsubClient.AuditPublisher()
	if auditPublisher == nil {
		logg.Error(context.Background(), "audit topic not configured", errors.New("missing audit publisher"))
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Repository: auditlog.NewRepository(dbClient.DB()),
		Publisher:  gcpPublisher{inner: auditPublisher},
		Pinger:     pubsubClient.Ping,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create audit publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":   cfg.App.Env,
		"topic": cfg.PubSub.AuditTopic,
	})
	logg.Info(ctx, "starting audit publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "audit publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "audit publisher shutting down gracefully")
}
