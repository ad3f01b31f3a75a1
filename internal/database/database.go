package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/sitefreelance/backend/internal/config"
)

// ErrNotConfigured is returned when no DATABASE_URL is set
var ErrNotConfigured = errors.New("database URL is not configured")

// maxBackoff caps the delay between connection attempts
const maxBackoff = 30 * time.Second

// DB represents the database connection pool
type DB struct {
	Pool *pgxpool.Pool
	url  string
}

// New creates a new database connection pool and verifies it with a ping
func New(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Small fixed-size pool shared by every request
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = time.Minute
	if cfg.AcquireTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg))
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Int32("max_conns", cfg.MaxConns).
		Msg("Database connection established")

	return &DB{Pool: pool, url: cfg.URL}, nil
}

// Connect calls New with bounded retry and exponential backoff.
// It returns the last error once every attempt has failed; callers keep
// serving in a degraded state rather than exiting.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := cfg.ConnectBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := New(ctx, cfg)
		if err == nil {
			return db, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("retry_in", backoff).
			Msg("Database not reachable, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}

	return nil, fmt.Errorf("database unavailable after %d attempts: %w", attempts, lastErr)
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func pingTimeout(cfg *config.DatabaseConfig) time.Duration {
	if cfg.AcquireTimeout > 0 {
		return cfg.AcquireTimeout
	}
	return 5 * time.Second
}

// URL returns the connection string the pool was built from
func (db *DB) URL() string {
	return db.url
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
	log.Info().Msg("Database connection closed")
}

// Health checks if the database is healthy
func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// PoolStats reports acquired and idle connection counts
func (db *DB) PoolStats() (active, idle int) {
	stat := db.Pool.Stat()
	return int(stat.AcquiredConns()), int(stat.IdleConns())
}
