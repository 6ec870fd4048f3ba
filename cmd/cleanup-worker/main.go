package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dcastella/fabrica-backend/internal/cleanup"
	"github.com/dcastella/fabrica-backend/internal/storage"
	"github.com/dcastella/fabrica-backend/pkg/config"
	"github.com/dcastella/fabrica-backend/pkg/logger"
	"github.com/dcastella/fabrica-backend/pkg/metrics"
	"github.com/dcastella/fabrica-backend/pkg/pubsub"
	"github.com/dcastella/fabrica-backend/pkg/storage/gcs"
)

// The cleanup worker drains the storage-cleanup subscription and deletes
// every object under each requested prefix.
func main() {
	logg := logger.New(logger.Options{ServiceName: "cleanup-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cleanup-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap object storage", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing object storage", err)
		}
	}()
	photoStore := storage.NewPhotoStore(gcsClient.BucketHandle(cfg.GCS.BucketName), cfg.Storage)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	cleanupMetrics := metrics.NewCleanupMetrics(prometheus.NewRegistry())

	consumer, err := cleanup.NewConsumer(pubsubClient.CleanupSubscription(), photoStore, cleanupMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cleanup consumer", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cleanup worker listening")
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		logg.Error(ctx, "cleanup consumer stopped unexpectedly", err)
		os.Exit(1)
	}
}
