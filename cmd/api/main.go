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

	"orengen_backend/internal/email"
	"orengen_backend/internal/events"
	apphttp "orengen_backend/internal/http"
	"orengen_backend/internal/http/router"
	"orengen_backend/internal/leads"
	"orengen_backend/internal/notification"
	"orengen_backend/internal/notification/sse"
	"orengen_backend/internal/scheduler"
	"orengen_backend/internal/speedtolead"
	"orengen_backend/internal/speedtolead/assignment"
	"orengen_backend/migrations"
	"orengen_backend/platform/config"
	"orengen_backend/platform/db"
	"orengen_backend/platform/logger"
	"orengen_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if cfg.MigrationsEnabled {
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, cfg, migrations.FS)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)

	slaScheduler, closeScheduler := initSLAScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// Redis is required once REDIS_URL is set.
	var redisClient *redis.Client
	if cfg.GetRedisURL() != "" {
		redisClient, err = scheduler.ConnectRedis(ctx, cfg, 5, time.Second)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			panic("failed to connect to redis: " + err.Error())
		}
		defer func() { _ = redisClient.Close() }()
		log.Info("redis connection established")
	}
	counter := initRoundRobinCounter(redisClient, pool, log)

	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	notificationModule := notification.New(pool, email.NewSender(cfg), cfg, val, log)
	notificationModule.RegisterHandlers(eventBus)
	if redisClient != nil {
		go func() {
			if err := sse.NewRelay(redisClient, log).Run(ctx, notificationModule.SSE()); err != nil {
				log.Error("sse relay stopped", "error", err)
			}
		}()
	}

	leadsModule := leads.NewModule(pool, eventBus, val, log)

	speedToLeadModule, err := speedtolead.NewModule(cfg, speedtolead.Deps{
		Pool:      pool,
		Leads:     leadsModule.Repository(),
		Workload:  leadsModule.Repository(),
		Counter:   counter,
		Outbox:    notificationModule.Outbox(),
		Scheduler: slaScheduler,
		Bus:       eventBus,
		Redis:     redisClient,
		Validator: val,
		Log:       log,
	})
	if err != nil {
		log.Error("failed to initialize speed-to-lead module", "error", err)
		panic("failed to initialize speed-to-lead module: " + err.Error())
	}
	speedToLeadModule.RegisterHandlers(eventBus)
	go func() {
		if err := speedToLeadModule.ListenConfigChanges(ctx); err != nil {
			log.Error("config invalidation listener stopped", "error", err)
		}
	}()

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:                cfg,
		Logger:                log,
		Health:                pool,
		EventBus:              eventBus,
		IngestRateLimitPerMin: cfg.IngestRateLimitPerMin,
		Modules: []apphttp.Module{
			leadsModule,
			speedToLeadModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initSLAScheduler(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.SLAScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; SLA warnings and breach checks disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize sla scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// initRoundRobinCounter uses the shared Redis counter when Redis is
// configured and the database sequence otherwise.
func initRoundRobinCounter(client *redis.Client, pool *pgxpool.Pool, log *logger.Logger) assignment.Counter {
	if client == nil {
		log.Info("REDIS_URL not configured; using database round-robin counter")
		return assignment.NewPostgresCounter(pool)
	}
	return assignment.NewRedisCounter(client)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
