package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"orengen_backend/internal/email"
	"orengen_backend/internal/events"
	"orengen_backend/internal/leads"
	"orengen_backend/internal/notification"
	"orengen_backend/internal/notification/sse"
	"orengen_backend/internal/scheduler"
	"orengen_backend/internal/speedtolead"
	"orengen_backend/internal/speedtolead/assignment"
	"orengen_backend/platform/config"
	"orengen_backend/platform/db"
	"orengen_backend/platform/logger"
	"orengen_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	notificationModule := notification.New(pool, email.NewSender(cfg), cfg, val, log)
	notificationModule.RegisterHandlers(eventBus)

	redisClient, err := scheduler.ConnectRedis(ctx, cfg, 5, time.Second)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = redisClient.Close() }()
	// Live updates raised here go to the API processes holding SSE clients.
	notificationModule.RelayLiveUpdates(sse.NewRelay(redisClient, log))

	slaClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize sla scheduler client", "error", err)
		panic("failed to initialize sla scheduler client: " + err.Error())
	}
	defer func() { _ = slaClient.Close() }()

	// SLA checks never assign, so the counter is only there to satisfy the
	// module; the API process owns round-robin state.
	leadsRepo := leads.NewModule(pool, eventBus, val, log).Repository()
	speedToLeadModule, err := speedtolead.NewModule(cfg, speedtolead.Deps{
		Pool:      pool,
		Leads:     leadsRepo,
		Workload:  leadsRepo,
		Counter:   assignment.NewPostgresCounter(pool),
		Outbox:    notificationModule.Outbox(),
		Scheduler: slaClient,
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

	dispatcher, err := scheduler.NewNotificationOutboxDispatcher(cfg, notificationModule.Outbox(), log)
	if err != nil {
		log.Error("failed to initialize outbox dispatcher", "error", err)
		panic("failed to initialize outbox dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()
	go dispatcher.Run(ctx)

	retentionInterval := getDurationEnv("NOTIFICATION_RETENTION_INTERVAL", time.Hour)
	sentRetention := time.Duration(getPositiveIntEnv("NOTIFICATION_SENT_RETENTION_DAYS", 14)) * 24 * time.Hour
	failedRetention := time.Duration(getPositiveIntEnv("NOTIFICATION_FAILED_RETENTION_DAYS", 30)) * 24 * time.Hour
	retention := scheduler.NewNotificationRetention(notificationModule.Outbox(), log, retentionInterval, sentRetention, failedRetention)
	go retention.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	eventBus.Wait()
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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

func getPositiveIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
