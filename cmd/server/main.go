package main

import (
	"context"
	"errors"
	"fleet-routing-service/internal/adapters/cache"
	"fleet-routing-service/internal/adapters/distance"
	"fleet-routing-service/internal/adapters/messaging"
	"fleet-routing-service/internal/adapters/repositories"
	"fleet-routing-service/internal/adapters/state"
	"fleet-routing-service/internal/api"
	"fleet-routing-service/internal/config"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/platform/db"
	"fleet-routing-service/internal/ports"
	"fleet-routing-service/internal/services"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

// main is the application composition root.
// It wires concrete adapters (Postgres, ORS, Redis, RabbitMQ) behind ports and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	logger.Info("starting fleet routing server",
		"log_level", cfg.LogLevel.String(),
		"port", cfg.Port,
		"ors_configured", cfg.ORSAPIKey != "",
		"redis_enabled", cfg.RedisEnabled,
		"amqp_enabled", cfg.AMQPURL != "",
	)

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	// ORS reads through the Postgres distance cache to avoid repeated matrix calls.
	provider := distance.NewORSDistanceProvider(cfg.ORSAPIKey, cfg.ORSBaseURL, cfg.ORSProfile, cache.NewSQLDistanceCache(sqlDB))
	if cfg.ORSAPIKey == "" {
		logger.Warn("ORS_API_KEY is empty; optimize results will be degraded")
	}
	optimizer := services.NewRouteOptimizer(provider, distance.NewStraightLineProvider(cfg.FallbackSpeedKmh), services.OptimizerConfig{
		ProviderTimeout:  cfg.ProviderTimeout,
		ProviderRetries:  cfg.ProviderRetries,
		TwoOptIterations: cfg.TwoOptIterations,
	})

	var (
		stateStore    ports.ProximityStateStore = state.NewMemoryStore()
		optimizeCache ports.OptimizeCache       = cache.NewMemoryOptimizeCache(cfg.OptimizeCacheTTL)
		decisionOpts  []services.Option
	)
	if cfg.RedisEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}

		stateStore = state.NewRedisStore(rdb, cfg.ProximityStateTTL)
		// Instances sharing the position queue must also share the per-trip lock.
		decisionOpts = append(decisionOpts, services.WithTripLocker(state.NewRedisTripLocker(rdb, cfg.TripLockLease)))
		optimizeCache = cache.NewRedisOptimizeCache(rdb, cfg.OptimizeCacheTTL)
	}

	var notifier ports.ArrivalNotifier = messaging.LogNotifier{}
	var mq *messaging.Client
	if cfg.AMQPURL != "" {
		mq, err = messaging.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("failed to connect to broker", "error", err)
			os.Exit(1)
		}
		defer mq.Close()

		publisher, err := messaging.NewArrivalPublisher(mq)
		if err != nil {
			logger.Error("failed to open publisher channel", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		notifier = publisher
	}

	notifications, err := services.NewNotificationDecisionService(
		stateStore,
		repositories.NewPostgresTripStopRepository(sqlDB),
		notifier,
		cfg.Proximity,
		decisionOpts...,
	)
	if err != nil {
		logger.Error("invalid proximity configuration", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(api.Deps{
		Optimizer:          optimizer,
		OptimizeCache:      optimizeCache,
		Notifications:      notifications,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		CORSOrigins:        cfg.CORSOrigins,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if mq != nil {
		handle := func(ctx context.Context, sample domain.PositionSample) error {
			_, err := notifications.HandlePosition(ctx, sample)
			return err
		}
		if err := mq.ConsumePositions(ctx, cfg.AMQPPositionQueue, handle); err != nil {
			logger.Error("failed to start position consumer", "error", err)
			os.Exit(1)
		}
	}

	// Timeouts leave room for a cold-cache matrix call plus the fallback.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.ProviderTimeout*time.Duration(cfg.ProviderRetries+1) + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
