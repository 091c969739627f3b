package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"orengen_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

// SLAScheduler plans and cancels deferred SLA checks.
type SLAScheduler interface {
	ScheduleSLACheck(ctx context.Context, payload SLACheckPayload, runAt time.Time) error
	CancelSLAChecks(ctx context.Context, assignmentID uuid.UUID) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Close()
	if c.inspector != nil {
		err = errors.Join(err, c.inspector.Close())
	}
	return err
}

// ScheduleSLACheck enqueues one phase of an assignment's SLA check. Scheduling
// a phase that is already pending is not an error.
func (c *Client) ScheduleSLACheck(ctx context.Context, payload SLACheckPayload, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewSLACheckTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(runAt),
		asynq.Queue(c.queue),
		asynq.TaskID(SLACheckTaskID(payload.AssignmentID, payload.Phase)),
		asynq.MaxRetry(10),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// CancelSLAChecks deletes every pending phase for an assignment.
func (c *Client) CancelSLAChecks(ctx context.Context, assignmentID uuid.UUID) error {
	if c == nil || c.inspector == nil {
		return nil
	}

	var errs []error
	for _, phase := range SLAPhases {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := c.inspector.DeleteTask(c.queue, SLACheckTaskID(assignmentID.String(), phase))
		if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			continue
		}
		errs = append(errs, fmt.Errorf("delete %s check: %w", phase, err))
	}
	return errors.Join(errs...)
}

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}

// NewRedisClient opens a go-redis client for the shared Redis URL.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

// ConnectRedis opens the shared Redis client and pings it, retrying with a
// growing delay. A configured Redis that stays unreachable is an error.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, attempts int, baseDelay time.Duration) (*redis.Client, error) {
	if cfg.GetRedisURL() == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			return client, nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * baseDelay):
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("redis unreachable after %d attempts: %w", attempts, lastErr)
}
