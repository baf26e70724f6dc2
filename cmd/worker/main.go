package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/larry-a4/bidmore/internal/adapters/database"
	"github.com/larry-a4/bidmore/internal/adapters/rediskv"
	"github.com/larry-a4/bidmore/internal/config"
	pkgdb "github.com/larry-a4/bidmore/pkg/database"
	pkgevents "github.com/larry-a4/bidmore/pkg/events"
	"github.com/larry-a4/bidmore/pkg/kvstore"
)

// Standalone outbox relay. Drains pending transfer instructions from the
// shared store and publishes them to RabbitMQ, independently of the API
// process.
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.RabbitURL == "" {
		logger.Error("BIDMORE_RABBITMQ_URL is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The worker reads the same store the API writes. An in-memory store is
	// process-local, so it cannot feed a separate relay.
	var store kvstore.Store
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			logger.Error("Unable to parse database config", "error", err)
			os.Exit(1)
		}

		pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
		if err != nil {
			logger.Error("Unable to create connection pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if pingErr := pool.Ping(ctx); pingErr != nil {
			logger.Error("Unable to ping database", "error", pingErr)
			os.Exit(1)
		}
		logger.Info("Postgres Connected")

		txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
		store = database.NewPostgresKVStore(pool, txManager)

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("Unable to ping redis", "error", err)
			os.Exit(1)
		}
		logger.Info("Redis Connected")

		store = rediskv.NewStore(rdb, cfg.RedisPrefix)

	default:
		logger.Error("Worker requires a shared store backend", "backend", cfg.StoreBackend)
		os.Exit(1)
	}

	amqpConn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	rabbitPublisher, err := pkgevents.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer rabbitPublisher.Close()

	relay := pkgevents.NewOutboxRelay(
		pkgevents.NewKVOutbox(store),
		rabbitPublisher,
		cfg.RelayBatch,
		cfg.RelayInterval,
		cfg.Exchange,
		logger,
	)

	logger.Info("Starting Outbox Relay Worker...")
	if err := relay.Run(ctx); err != nil {
		logger.Error("Relay failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped")
}
