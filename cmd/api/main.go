package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/larry-a4/bidmore/internal/adapters/api"
	"github.com/larry-a4/bidmore/internal/adapters/database"
	adapterevents "github.com/larry-a4/bidmore/internal/adapters/events"
	"github.com/larry-a4/bidmore/internal/adapters/rediskv"
	"github.com/larry-a4/bidmore/internal/config"
	"github.com/larry-a4/bidmore/internal/domain/auctions"
	"github.com/larry-a4/bidmore/internal/metrics"
	"github.com/larry-a4/bidmore/pkg/auth"
	pkgdb "github.com/larry-a4/bidmore/pkg/database"
	pkgevents "github.com/larry-a4/bidmore/pkg/events"
	"github.com/larry-a4/bidmore/pkg/kvstore"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Initialize the record store backend
	var store kvstore.Store
	switch cfg.StoreBackend {
	case config.BackendMemory:
		store = kvstore.NewMemoryStore()
		logger.Info("Using in-memory store")

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
	}

	// 2. Initialize the transfer outbox and optional RabbitMQ relay
	outbox := pkgevents.NewKVOutbox(store)
	transferOutbox := adapterevents.NewTransferOutbox(outbox)

	var relay *pkgevents.OutboxRelay
	if cfg.RabbitURL != "" {
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

		relay = pkgevents.NewOutboxRelay(
			outbox,
			rabbitPublisher,
			cfg.RelayBatch,
			cfg.RelayInterval,
			cfg.Exchange,
			logger,
		)
	} else {
		logger.Info("RabbitMQ not configured, transfer instructions stay in the outbox")
	}

	// 3. Initialize JWT validation
	if cfg.JWTPublicKeyFile == "" {
		logger.Error("BIDMORE_JWT_PUBLIC_KEY_FILE is not set")
		os.Exit(1)
	}
	pubPEM, err := os.ReadFile(cfg.JWTPublicKeyFile)
	if err != nil {
		logger.Error("Failed to read JWT public key", "error", err)
		os.Exit(1)
	}
	signer, err := auth.NewSignerFromPublicKey(pubPEM, cfg.JWTIssuer)
	if err != nil {
		logger.Error("Failed to initialize token validator", "error", err)
		os.Exit(1)
	}

	// 4. Initialize Service (Domain Layer)
	service := auctions.NewService(auctions.NewRecords(store), transferOutbox, logger)

	// 5. Initialize metrics and the API handler
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	handler := api.NewHandler(service, m, logger)

	mux := http.NewServeMux()
	handler.Register(mux, auth.NewMiddleware(signer))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// 6. Start server and relay
	logger.Info("Starting Auction API", "addr", cfg.Addr, "backend", cfg.StoreBackend)

	// Use h2c for HTTP/2 without TLS (common for internal services / local dev)
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if relay != nil {
		group.Go(func() error {
			logger.Info("Starting Outbox Relay...")
			return relay.Run(groupCtx)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
