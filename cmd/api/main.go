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

	"github.com/rs/zerolog/log"
	"github.com/sitefreelance/backend/internal/admin"
	"github.com/sitefreelance/backend/internal/cache"
	"github.com/sitefreelance/backend/internal/config"
	"github.com/sitefreelance/backend/internal/contact"
	"github.com/sitefreelance/backend/internal/database"
	"github.com/sitefreelance/backend/internal/logging"
	"github.com/sitefreelance/backend/internal/mail"
	"github.com/sitefreelance/backend/internal/monitoring"
	"github.com/sitefreelance/backend/internal/ratelimit"
	"github.com/sitefreelance/backend/internal/review"
	"github.com/sitefreelance/backend/internal/scheduler"
	"github.com/sitefreelance/backend/internal/server"
	"github.com/sitefreelance/backend/migrations"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Str("name", cfg.Server.Name).
		Msg("Starting site backend")

	// Initialize Prometheus metrics
	monitoring.Init()

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg.Monitoring.PrometheusPort)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := server.Dependencies{}

	// The datastore is optional at runtime: without it review routes fail
	// and the contact form keeps working
	db, store := openReviewStore(ctx, cfg)
	if db != nil {
		defer db.Close()
		deps.DB = db
		deps.Reviews = store
	}
	monitoring.SetDBAvailable(db != nil)

	if cfg.Redis.URL != "" {
		rdb, err := cache.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, review cache disabled")
		} else {
			defer rdb.Close()
			deps.Cache = cache.NewReviewCache(rdb, cfg.Redis.ReviewsCacheTTL)
		}
	}

	sender, err := mail.NewSender(&cfg.Mail)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create mail sender")
	}
	breakerCfg := mail.DefaultBreakerConfig()
	breakerCfg.OnStateChange = monitoring.SetCircuitBreakerState
	guarded := mail.NewBreakerSender(sender, breakerCfg)
	monitoring.SetCircuitBreakerState(guarded.Name(), guarded.State())
	log.Info().Str("provider", guarded.Name()).Msg("Mail sender ready")

	ledger, err := ratelimit.NewLedger(cfg.Contact.LedgerSize, cfg.Contact.RateWindow)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rate ledger")
	}
	ledger.OnEvict(monitoring.RecordLedgerEviction)
	deps.Contact = contact.NewRelay(guarded, ledger, &cfg.Mail)

	gate, err := admin.NewGate(&cfg.Admin)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure admin access")
	}
	deps.Admin = gate

	jobs := scheduler.New()
	var pool scheduler.PoolStatter
	if db != nil {
		pool = db
	}
	if err := scheduler.RegisterMaintenance(jobs, ledger, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule maintenance jobs")
	}
	if err := jobs.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	srv := server.NewAPIServer(cfg, deps)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Bool("database", db != nil).
			Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	select {
	case <-jobs.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("Scheduled jobs still running at shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

const layoutTimeout = time.Minute

// openReviewStore connects with retry, resolves the column layout once and
// builds the store. It returns nils when the process must run degraded.
func openReviewStore(ctx context.Context, cfg *config.Config) (*database.DB, *review.Store) {
	db, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		log.Error().Err(err).Msg("Database unavailable, review routes disabled")
		return nil, nil
	}

	// Covers detection and, when needed, migrating then detecting again
	detectCtx, cancel := context.WithTimeout(ctx, layoutTimeout)
	defer cancel()

	schema, err := review.DetectOrMigrate(detectCtx, db.Pool, func() error {
		log.Info().Msg("Reviews table missing or outdated, applying migrations")
		return database.RunMigrations(db.URL(), migrations.FS, migrations.Path)
	})
	if err != nil {
		log.Error().Err(err).Msg("Unusable reviews table, review routes disabled")
		db.Close()
		return nil, nil
	}

	log.Info().Str("layout", schema.String()).Msg("Review column layout resolved")

	store := review.NewStore(db.Pool, schema, review.Options{QueryTimeout: cfg.Database.AcquireTimeout})
	return db, store
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().
		Int("port", port).
		Msg("Prometheus metrics server listening")

	if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server error")
	}
}
