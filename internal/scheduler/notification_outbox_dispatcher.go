package scheduler

import (
	"context"
	"fmt"
	"time"

	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/platform/config"
	"orengen_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	defaultOutboxPollInterval = 2 * time.Second
	defaultOutboxBatchSize    = 50
	defaultOutboxStaleAfter   = 15 * time.Minute
	outboxReapInterval        = time.Minute
)

// OutboxClaimer hands out pending notifications exactly once.
type OutboxClaimer interface {
	ClaimPending(ctx context.Context, limit int) ([]domain.Notification, error)
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string, runAt time.Time) error
	RequeueStale(ctx context.Context, before time.Time) (int64, error)
}

// TaskEnqueuer is the part of the asynq client the dispatcher uses.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// DispatcherConfig bundles what the outbox dispatcher reads from configuration.
type DispatcherConfig interface {
	config.SchedulerConfig
	GetOutboxPollInterval() time.Duration
	GetOutboxBatchSize() int
	GetOutboxStaleAfter() time.Duration
}

type NotificationOutboxDispatcher struct {
	client     TaskEnqueuer
	queue      string
	repo       OutboxClaimer
	log        *logger.Logger
	interval   time.Duration
	batch      int
	staleAfter time.Duration
	now        func() time.Time
	lastReap   time.Time
}

func NewNotificationOutboxDispatcher(cfg DispatcherConfig, repo OutboxClaimer, log *logger.Logger) (*NotificationOutboxDispatcher, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	d := newDispatcher(asynq.NewClient(opt), queueName(cfg), repo, log, cfg.GetOutboxPollInterval(), cfg.GetOutboxBatchSize())
	if stale := cfg.GetOutboxStaleAfter(); stale > 0 {
		d.staleAfter = stale
	}
	return d, nil
}

func newDispatcher(client TaskEnqueuer, queue string, repo OutboxClaimer, log *logger.Logger, interval time.Duration, batch int) *NotificationOutboxDispatcher {
	if interval <= 0 {
		interval = defaultOutboxPollInterval
	}
	if batch < 1 {
		batch = defaultOutboxBatchSize
	}
	return &NotificationOutboxDispatcher{
		client:     client,
		queue:      queue,
		repo:       repo,
		log:        log,
		interval:   interval,
		batch:      batch,
		staleAfter: defaultOutboxStaleAfter,
		now:        time.Now,
	}
}

func (d *NotificationOutboxDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *NotificationOutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		d.reapStale(ctx)
		d.dispatchOnce(ctx)
	}
}

// reapStale puts enqueued notifications without delivery progress for
// staleAfter back to pending. It runs at most once per outboxReapInterval.
func (d *NotificationOutboxDispatcher) reapStale(ctx context.Context) int64 {
	now := d.now()
	if !d.lastReap.IsZero() && now.Sub(d.lastReap) < outboxReapInterval {
		return 0
	}
	d.lastReap = now

	requeued, err := d.repo.RequeueStale(ctx, now.Add(-d.staleAfter))
	if err != nil {
		d.log.Warn("outbox stale requeue failed", "error", err)
		return 0
	}
	if requeued > 0 {
		d.log.Warn("requeued stale outbox notifications", "count", requeued, "staleAfter", d.staleAfter)
	}
	return requeued
}

// dispatchOnce claims one batch and enqueues a delivery task per notification.
// Rows that cannot be enqueued go back to pending.
func (d *NotificationOutboxDispatcher) dispatchOnce(ctx context.Context) int {
	records, err := d.repo.ClaimPending(ctx, d.batch)
	if err != nil {
		d.log.Warn("outbox claim failed", "error", err)
		return 0
	}

	enqueued := 0
	for _, rec := range records {
		task, err := NewNotificationOutboxDueTask(NotificationOutboxDuePayload{
			NotificationID: rec.ID.String(),
			TenantID:       rec.TenantID.String(),
		})
		if err != nil {
			msg := err.Error()
			_ = d.repo.MarkPending(ctx, rec.ID, &msg, rec.RunAt)
			continue
		}

		_, err = d.client.EnqueueContext(ctx, task, asynq.ProcessAt(rec.RunAt), asynq.Queue(d.queue))
		if err != nil {
			msg := err.Error()
			_ = d.repo.MarkPending(ctx, rec.ID, &msg, rec.RunAt)
			d.log.Warn("outbox enqueue failed", "notificationId", rec.ID, "error", err)
			continue
		}
		enqueued++
	}
	return enqueued
}
