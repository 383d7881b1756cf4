package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Config is the runtime configuration shared by the escrow binaries
type Config struct {
	DBURL            string
	RabbitMQURL      string
	RedisURL         string
	HTTPAddr         string
	JWTPublicKeyPath string
	JWTIssuer        string
	GenesisTime      time.Time
	BlockTime        time.Duration
	DBLockTimeout    time.Duration
	OutboxBatchSize  int
	OutboxInterval   time.Duration
	MigrationsDir    string
}

// LoadDotEnv loads .env.local then .env; local overrides win since godotenv never overwrites
func LoadDotEnv() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()
}

// Load reads the configuration from the process environment
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv
func LoadFrom(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		DBURL:            get("ESCROW_DB_URL", ""),
		RabbitMQURL:      get("RABBITMQ_URL", ""),
		RedisURL:         get("REDIS_URL", ""),
		HTTPAddr:         get("HTTP_ADDR", ":8080"),
		JWTPublicKeyPath: get("JWT_PUBLIC_KEY_PATH", ""),
		JWTIssuer:        get("JWT_ISSUER", "poetchain"),
		MigrationsDir:    get("MIGRATIONS_DIR", ""),
	}

	var errs []error
	if cfg.DBURL == "" {
		errs = append(errs, errors.New("ESCROW_DB_URL is not set"))
	}
	if cfg.RabbitMQURL == "" {
		errs = append(errs, errors.New("RABBITMQ_URL is not set"))
	}

	var err error
	if cfg.GenesisTime, err = time.Parse(time.RFC3339, get("GENESIS_TIME", "1970-01-01T00:00:00Z")); err != nil {
		errs = append(errs, fmt.Errorf("GENESIS_TIME: %w", err))
	}
	if cfg.BlockTime, err = positiveDuration(get("BLOCK_TIME", "6s")); err != nil {
		errs = append(errs, fmt.Errorf("BLOCK_TIME: %w", err))
	}
	if cfg.DBLockTimeout, err = time.ParseDuration(get("DB_LOCK_TIMEOUT", "3s")); err != nil {
		errs = append(errs, fmt.Errorf("DB_LOCK_TIMEOUT: %w", err))
	}
	if cfg.OutboxInterval, err = positiveDuration(get("OUTBOX_INTERVAL", "1s")); err != nil {
		errs = append(errs, fmt.Errorf("OUTBOX_INTERVAL: %w", err))
	}
	if cfg.OutboxBatchSize, err = strconv.Atoi(get("OUTBOX_BATCH_SIZE", "10")); err != nil || cfg.OutboxBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("OUTBOX_BATCH_SIZE must be a positive integer"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func positiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

// RedisOptions turns REDIS_URL into client options. Both redis:// URLs and bare host:port are accepted.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.RedisURL == "" {
		return nil, errors.New("REDIS_URL is not set")
	}
	if strings.Contains(c.RedisURL, "://") {
		return redis.ParseURL(c.RedisURL)
	}
	return &redis.Options{Addr: c.RedisURL}, nil
}
