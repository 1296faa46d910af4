package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockreserve/internal/config"
	"stockreserve/internal/infra"
	"stockreserve/internal/metrics"
	"stockreserve/internal/repository"
	"stockreserve/internal/repository/memory"
	"stockreserve/internal/router"
	"stockreserve/internal/service"
	"stockreserve/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ── Storage ──────────────────────────────────────────────────────────────
	var (
		db   *gorm.DB
		deps = service.ReservationDeps{Metrics: m, TTL: cfg.ReservationTTL}
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		log.Warn().Msg("using in-memory storage, state is lost on restart")
		store := memory.NewStore()
		deps.Tx, deps.Stock, deps.Reservations, deps.Movements = store, store.Stocks(), store.Reservations(), store.Movements()
	default:
		db, err = infra.NewDatabase(cfg.DatabaseURL, infra.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: 30 * time.Minute,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		deps.Tx = repository.NewTransactor(db)
		deps.Stock = repository.NewStockRepository(db)
		deps.Reservations = repository.NewReservationRepository(db)
		deps.Movements = repository.NewStockMovementRepository(db)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		deps.Cache = infra.NewStockCache(rdb, cfg.StockCacheTTL)
	}

	svc := service.NewReservationService(deps)

	// ── Notification ─────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	breaker := infra.NewCircuitBreaker("order-service", infra.DefaultCBConfig())
	orderClient := infra.NewOrderClient(cfg.OrderServiceURL, cfg.NotifyTimeout, breaker)

	var (
		notifier service.OrderNotifier = orderClient
		pool     *worker.Pool
		kafkaN   *infra.KafkaNotifier
	)
	switch cfg.NotifyMode {
	case config.NotifyQueue:
		notifier = worker.NewDispatcher(rdb)
		pool = worker.StartWorkerPool(ctx, worker.PoolConfig{
			RDB: rdb,
			Handlers: map[string]worker.Handler{
				worker.JobOrderExpired: worker.OrderExpiredHandler(orderClient, cfg.NotifyTimeout),
			},
			Workers:     cfg.WorkerPoolSize,
			MaxAttempts: cfg.NotifyMaxRetries,
			Metrics:     m,
		})
	case config.NotifyKafka:
		kafkaN = infra.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaExpiredTopic)
		notifier = kafkaN
	}

	reaper := worker.NewReaper(worker.ReaperConfig{
		Engine:        svc,
		Notifier:      notifier,
		Metrics:       m,
		Interval:      cfg.ReaperInterval,
		BatchSize:     cfg.ReaperBatchSize,
		NotifyTimeout: cfg.NotifyTimeout,
	})
	reaper.Start(ctx)

	// ── HTTP ─────────────────────────────────────────────────────────────────
	r := router.New(ctx, cfg, router.Deps{
		Service:  svc,
		DB:       db,
		Redis:    rdb,
		Breaker:  breaker,
		Gatherer: reg,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("storage", cfg.StorageDriver).
			Str("notify", cfg.NotifyMode).
			Msg("stock reservation service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	// Stop producers before the sinks they write to.
	reaper.Stop()
	cancel()
	if pool != nil {
		pool.Wait()
	}
	if kafkaN != nil {
		if err := kafkaN.Close(); err != nil {
			log.Error().Err(err).Msg("kafka writer close")
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	log.Info().Msg("server exited")
}

// setupLogger: dev gets the pretty console writer, production plain JSON.
func setupLogger(cfg *config.Config) {
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
