package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dcastella/fabrica-backend/api/controllers"
	"github.com/dcastella/fabrica-backend/api/routes"
	"github.com/dcastella/fabrica-backend/internal/cleanup"
	"github.com/dcastella/fabrica-backend/internal/clients"
	"github.com/dcastella/fabrica-backend/internal/locations"
	"github.com/dcastella/fabrica-backend/internal/materials"
	"github.com/dcastella/fabrica-backend/internal/processes"
	"github.com/dcastella/fabrica-backend/internal/products"
	"github.com/dcastella/fabrica-backend/internal/storage"
	"github.com/dcastella/fabrica-backend/pkg/config"
	"github.com/dcastella/fabrica-backend/pkg/db"
	"github.com/dcastella/fabrica-backend/pkg/logger"
	"github.com/dcastella/fabrica-backend/pkg/metrics"
	"github.com/dcastella/fabrica-backend/pkg/migrate"
	"github.com/dcastella/fabrica-backend/pkg/pubsub"
	"github.com/dcastella/fabrica-backend/pkg/redis"
	"github.com/dcastella/fabrica-backend/pkg/storage/gcs"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

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

	registry := prometheus.NewRegistry()
	cleanupMetrics := metrics.NewCleanupMetrics(registry)

	scheduler, err := cleanup.NewScheduler(cfg.Cleanup, cleanup.NewPubsubPublisher(pubsubClient.CleanupPublisher()), cleanupMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cleanup scheduler", err)
		os.Exit(1)
	}
	go func() {
		if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
			logg.Error(ctx, "cleanup scheduler stopped unexpectedly", err)
		}
	}()

	processService := processes.NewService(processes.NewRepository(dbClient.DB()), logg)
	productService := products.NewService(
		products.NewRepository(dbClient.DB()),
		dbClient,
		processService,
		photoStore,
		scheduler,
		logg,
	)
	materialService := materials.NewService(materials.NewRepository(dbClient.DB()), logg)
	clientService := clients.NewService(clients.NewRepository(dbClient.DB()), logg)
	locationService := locations.NewService(locations.NewRepository(dbClient.DB()), logg)

	health := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
		"storage":  gcsClient,
		"pubsub":   pubsubClient,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			health,
			redisClient,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			productService,
			materialService,
			processService,
			clientService,
			locationService,
		),
	}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(startCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
