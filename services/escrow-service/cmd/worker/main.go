package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	pkgdb "github.com/floroz/poetchain/pkg/database"
	pkgevents "github.com/floroz/poetchain/pkg/events"
	"github.com/floroz/poetchain/services/escrow-service/internal/adapters/cache"
	"github.com/floroz/poetchain/services/escrow-service/internal/adapters/database"
	"github.com/floroz/poetchain/services/escrow-service/internal/adapters/events"
	"github.com/floroz/poetchain/services/escrow-service/internal/config"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down worker...")
		cancel()
	}()

	// 1. Initialize Postgres Connection Pool
	dbConfig, err := pgxpool.ParseConfig(cfg.DBURL)
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

	if err = pool.Ping(ctx); err != nil {
		logger.Error("Unable to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. Connect to Redis
	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		logger.Error("Invalid Redis configuration", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if err = rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Unable to ping Redis", "error", err)
		os.Exit(1)
	}
	logger.Info("Redis Connected")

	// 3. Connect to RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	publisher, err := pkgevents.NewRabbitMQPublisher(amqpConn, pkgevents.ExchangeAuctionEvents, "application/x-protobuf")
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// 4. Initialize outbox relay and activity consumer
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.DBLockTimeout)
	relay := pkgevents.NewOutboxRelay(
		database.NewPostgresOutboxRepository(pool),
		publisher,
		txManager,
		cfg.OutboxBatchSize,
		cfg.OutboxInterval,
		pkgevents.ExchangeAuctionEvents,
		logger,
	)
	consumer := events.NewActivityConsumer(amqpConn, cache.NewRedisActivityStore(rdb, cache.DefaultMaxEntries), logger)

	// 5. Run both until shutdown; the first failure stops the other
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting outbox relay...")
		return relay.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting activity consumer...")
		return consumer.Run(gctx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
