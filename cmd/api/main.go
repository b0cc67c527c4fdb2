package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"billboard/internal/api"
	"billboard/internal/cache"
	"billboard/internal/config"
	"billboard/internal/database"
	"billboard/internal/domain"
	"billboard/internal/events"
	"billboard/internal/logging"
	"billboard/internal/metrics"
	"billboard/internal/models"
	"billboard/internal/repository"
	"billboard/internal/service"
	"billboard/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, base, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := logging.Component(base, "main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, logger)

	db, err := database.Open(ctx, cfg.Database, logging.Component(base, "database"))
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return err
	}
	defer db.Close()
	db.SetMobileCapacity(cfg.Engine.MaxMobileUnits)

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus := events.NewEventBus()
	locCache := cache.New(db, snapshotStore(cfg, redisClient, base), cfg.Cache.TTL, logging.Component(base, "cache"))
	locCache.Subscribe(bus)

	statuses := service.NewStatusService(db, bus, service.ClockIn(cfg.Engine.Location()), logging.Component(base, "statuses"))
	bookings := service.NewBookingService(db, statuses, bus, cfg.Engine.HoldDays, logging.Component(base, "bookings"))
	locations := service.NewLocationService(db, locCache, statuses, logging.Component(base, "locations"))

	if err := seedCatalog(ctx, cfg.Catalog.Path, locations, logger); err != nil {
		return err
	}
	if err := locCache.Warm(ctx); err != nil {
		logger.Warn().Err(err).Msg("location cache starts empty")
	}

	go locCache.Start(ctx)
	go worker.NewScheduler(statuses, cfg.Engine.ReaperInterval, worker.DefaultRetryPolicy, logging.Component(base, "scheduler")).Start(ctx)
	go database.NewBackupService(db, cfg.Database.Path, cfg.Backup, logging.Component(base, "backup")).Start(ctx)

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config; running maintenance only")
		<-ctx.Done()
		return nil
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Deps{
		Bookings:  bookings,
		Locations: locations,
		Statuses:  statuses,
		Health:    db.Ping,
	}, logging.Component(base, "http"))

	return serve(ctx, httpServer, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, baseLogger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		// the failover store keeps probing, so the client stays
		logger.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("redis not reachable yet")
		return client
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// snapshotStore keeps the last catalog snapshot in Redis when configured,
// with an in-process copy behind it.
func snapshotStore(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) domain.SnapshotStore {
	memory := repository.NewMemorySnapshotStore()
	if client == nil {
		return memory
	}
	primary := repository.NewRedisSnapshotStore(client, cfg.Cache.SnapshotKey, cfg.Cache.SnapshotTTL)
	return repository.NewFailoverSnapshotStore(primary, memory, logging.Component(logger, "snapshot"))
}

type catalogFile struct {
	Locations []models.Location `yaml:"locations"`
}

func seedCatalog(ctx context.Context, path string, locations *service.LocationService, logger *zerolog.Logger) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("catalog_path", path).Msg("catalog file not found, skipping seed")
			return nil
		}
		return fmt.Errorf("read catalog: %w", err)
	}

	var catalog catalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parse catalog %s: %w", path, err)
	}

	added, err := locations.SeedCatalog(ctx, catalog.Locations)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	logger.Info().Int("entries", len(catalog.Locations)).Int("added", added).Msg("catalog loaded")
	return nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()
	logger.Info().Str("addr", httpServer.Addr()).Msg("billboard API started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("billboard API stopped")
	return nil
}
