package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/floroz/poetchain/pkg/auth"
	pkgdb "github.com/floroz/poetchain/pkg/database"
	"github.com/floroz/poetchain/services/escrow-service/internal/adapters/api"
	"github.com/floroz/poetchain/services/escrow-service/internal/adapters/cache"
	"github.com/floroz/poetchain/services/escrow-service/internal/adapters/clock"
	"github.com/floroz/poetchain/services/escrow-service/internal/adapters/database"
	"github.com/floroz/poetchain/services/escrow-service/internal/config"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/escrow"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Migrations (optional)
	if cfg.MigrationsDir != "" {
		if err := pkgdb.Migrate(cfg.DBURL, cfg.MigrationsDir); err != nil {
			logger.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("Migrations applied", "dir", cfg.MigrationsDir)
	}

	// 2. Initialize Postgres Connection Pool
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

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 3. Token verification
	if cfg.JWTPublicKeyPath == "" {
		logger.Error("JWT_PUBLIC_KEY_PATH is not set")
		os.Exit(1)
	}
	publicKey, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		logger.Error("Failed to read JWT public key", "error", err)
		os.Exit(1)
	}
	signer, err := auth.NewSignerFromPublicKey(publicKey, cfg.JWTIssuer)
	if err != nil {
		logger.Error("Failed to load JWT public key", "error", err)
		os.Exit(1)
	}

	// 4. Activity feed (optional)
	var activity api.ActivityReader
	if cfg.RedisURL != "" {
		opts, err := cfg.RedisOptions()
		if err != nil {
			logger.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, activity feed disabled", "error", err)
		} else {
			activity = cache.NewRedisActivityStore(rdb, cache.DefaultMaxEntries)
			logger.Info("Redis Connected")
		}
	}

	// 5. Initialize Repositories (Infrastructure Layer)
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.DBLockTimeout)
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	ledgerRepo := database.NewPostgresLedgerRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	blocks := clock.NewBlockClock(cfg.GenesisTime, cfg.BlockTime)

	// 6. Initialize Service (Domain Layer)
	escrowService := escrow.NewService(txManager, auctionRepo, ledgerRepo, outboxRepo, blocks)

	// 7. Initialize API Handler (ConnectRPC)
	path, handler := api.NewHandler(api.NewEscrowServiceHandler(escrowService, activity), signer)

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// 8. Start Server
	logger.Info("Starting Escrow Service API", "addr", cfg.HTTPAddr, "block", uint64(blocks.Now()))

	// Use h2c for HTTP/2 without TLS (common for internal services / local dev)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("API stopped")
}
