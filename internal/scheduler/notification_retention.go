package scheduler

import (
	"context"
	"time"

	"orengen_backend/platform/logger"
)

const (
	defaultRetentionInterval = time.Hour
	defaultSentRetention     = 14 * 24 * time.Hour
	defaultFailedRetention   = 30 * 24 * time.Hour
)

// SettledNotificationPurger deletes delivered and failed notifications.
type SettledNotificationPurger interface {
	DeleteSettledBefore(ctx context.Context, sentBefore, failedBefore time.Time) (int64, error)
}

// NotificationRetention periodically removes old settled notifications.
type NotificationRetention struct {
	repo            SettledNotificationPurger
	log             *logger.Logger
	interval        time.Duration
	sentRetention   time.Duration
	failedRetention time.Duration
	now             func() time.Time
}

func NewNotificationRetention(repo SettledNotificationPurger, log *logger.Logger, interval, sentRetention, failedRetention time.Duration) *NotificationRetention {
	if interval <= 0 {
		interval = defaultRetentionInterval
	}
	if sentRetention <= 0 {
		sentRetention = defaultSentRetention
	}
	if failedRetention <= 0 {
		failedRetention = defaultFailedRetention
	}

	return &NotificationRetention{
		repo:            repo,
		log:             log,
		interval:        interval,
		sentRetention:   sentRetention,
		failedRetention: failedRetention,
		now:             time.Now,
	}
}

func (c *NotificationRetention) Run(ctx context.Context) {
	if c == nil || c.repo == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *NotificationRetention) cleanup(ctx context.Context) {
	now := c.now()
	sentBefore := now.Add(-c.sentRetention)
	failedBefore := now.Add(-c.failedRetention)

	deleted, err := c.repo.DeleteSettledBefore(ctx, sentBefore, failedBefore)
	if err != nil {
		c.log.Warn("notification retention cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		c.log.Info("notification retention deleted settled notifications", "deleted", deleted)
	}
}
