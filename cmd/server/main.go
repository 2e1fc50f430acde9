// Package main is the entrypoint of the study-hours HTTP service.
//
// The service stores student enrollments and answers how many hours per week
// each one must study. Layers follow the usual split:
//   - Domain: student variants and their required-hours capability
//   - Application: queries and commands
//   - Infrastructure: PostgreSQL storage, Redis cache
//   - Interface: REST API
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/study-hours/config"

	// Application layer
	"github.com/alem-hub/study-hours/internal/application/command"
	"github.com/alem-hub/study-hours/internal/application/query"

	// Domain
	"github.com/alem-hub/study-hours/internal/domain/student"

	// Infrastructure layer
	"github.com/alem-hub/study-hours/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/study-hours/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/study-hours/internal/infrastructure/persistence/redis"

	// Interface layer
	httpserver "github.com/alem-hub/study-hours/internal/interface/http"
	"github.com/alem-hub/study-hours/internal/interface/http/handlers"

	// Packages
	"github.com/alem-hub/study-hours/pkg/circuitbreaker"
	"github.com/alem-hub/study-hours/pkg/logger"
	"github.com/alem-hub/study-hours/pkg/retry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.Observability.LogCaller,
	}).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
	defer func() { _ = log.Sync() }()
	log.Info("starting study-hours service", logger.String("version", cfg.App.Version))

	visitorPolicy, err := query.ParseVisitorPolicy(cfg.Hours.VisitorPolicy)
	if err != nil {
		return err
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE (PostgreSQL, or in-memory in development)
	// ─────────────────────────────────────────────────────────────────────────
	var repo student.Repository

	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory storage")
		repo = memory.NewStudentRepository()
	} else {
		conn, err := connectPostgres(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database connection")
			conn.Close()
		}()
		health.AddCheck("postgres", handlers.NewPingCheck(conn))

		if cfg.Database.AutoMigrate {
			if err := migrate(ctx, conn, log); err != nil {
				return err
			}
		}
		repo = postgres.NewStudentRepository(conn)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. CACHE (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var cache student.Cache

	if !cfg.Redis.Disabled {
		redisCache, err := connectRedis(ctx, cfg, log)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		} else {
			defer func() { _ = redisCache.Close() }()
			health.AddOptionalCheck("redis", handlers.NewPingCheck(redisCache))
			studentCache := redis.NewStudentCache(redisCache,
				circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
					log.Warn("cache circuit state changed",
						logger.String("breaker", name),
						logger.String("from", from.String()),
						logger.String("to", to.String()),
					)
				}),
			)
			health.AddOptionalCheck("cache_circuit", handlers.NewBreakerCheck(studentCache.Breaker()))
			cache = studentCache
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	getRequiredHours := query.NewGetRequiredHoursHandler(repo, cache, query.GetRequiredHoursConfig{
		CacheTTL:      cfg.Hours.CacheTTL,
		VisitorPolicy: visitorPolicy,
	}, log)
	getCategoryHours := query.NewGetCategoryHoursHandler(visitorPolicy)
	listStudents := query.NewListStudentsHandler(repo)
	getCategoryStats := query.NewGetCategoryStatsHandler(repo)
	enrollStudent := command.NewEnrollStudentHandler(repo, cache, cfg.Hours.CacheTTL, log)
	changeCategory := command.NewChangeCategoryHandler(repo, cache, cfg.Hours.CacheTTL, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.APIKeyHashes = cfg.HTTP.APIKeyHashes
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpConfig.TrustProxyHeaders = cfg.HTTP.TrustProxyHeaders
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.Version = cfg.App.Version

	if len(cfg.HTTP.APIKeyHashes) == 0 {
		log.Warn("HTTP_API_KEY_HASHES not set, write endpoints are unauthenticated")
	}

	server := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		GetRequiredHours: getRequiredHours,
		GetCategoryHours: getCategoryHours,
		ListStudents:     listStudents,
		GetCategoryStats: getCategoryStats,
		EnrollStudent:    enrollStudent,
		ChangeCategory:   changeCategory,
		Logger:           log,
		HealthChecker:    health,
	})

	errCh, err := server.StartAsync()
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("http server error", logger.Err(err))
			return err
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

// connectPostgres opens the pool, retrying while the database comes up.
func connectPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	opts := postgres.PoolOptions{
		MaxConns:          int32(cfg.Database.MaxConns),
		MinConns:          int32(cfg.Database.MinConns),
		MaxConnLifetime:   cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime:   cfg.Database.ConnMaxIdleTime,
		HealthCheckPeriod: time.Minute,
	}

	// A malformed URL will not fix itself.
	if _, err := postgres.ParsePoolConfig(cfg.Database.URL, opts); err != nil {
		return nil, err
	}

	log.Info("connecting to database")
	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL, opts)
	}, append(retry.ConnectOptions(), retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		log.Warn("database not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	}))...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connection established")
	return conn, nil
}

func migrate(ctx context.Context, conn *postgres.Connection, log *logger.Logger) error {
	log.Info("running database migrations")
	migrator := postgres.NewMigrator(conn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to get migration status", logger.Err(err))
		return nil
	}

	applied := 0
	for _, m := range status {
		if m.Applied {
			applied++
		}
	}
	log.Info("migrations completed", logger.Int("applied", applied), logger.Int("total", len(status)))
	return nil
}

func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Cache, error) {
	redisCfg := redis.Config{
		URL:          cfg.Redis.URL,
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		KeyPrefix:    cfg.Redis.KeyPrefix,
		MaxRetries:   redis.DefaultConfig().MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}

	log.Info("connecting to Redis", logger.String("addr", redisCfg.Addr()))
	return retry.DoWithData(ctx, func(ctx context.Context) (*redis.Cache, error) {
		return redis.NewCache(ctx, redisCfg)
	}, retry.WithMaxAttempts(3), retry.WithInitialDelay(200*time.Millisecond))
}
