package scheduler

import (
	"context"
	"fmt"

	"orengen_backend/internal/events"
	"orengen_backend/platform/config"
	"orengen_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		bus:    bus,
		log:    log,
	}
	w.routes()

	return w, nil
}

func (w *Worker) routes() {
	w.mux.HandleFunc(TaskSLACheck, w.handleSLACheck)
	w.mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)
}

func (w *Worker) handleSLACheck(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseSLACheckPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("%w: tenant id: %v", asynq.SkipRetry, err)
	}
	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("%w: lead id: %v", asynq.SkipRetry, err)
	}
	assignmentID, err := uuid.Parse(payload.AssignmentID)
	if err != nil {
		return fmt.Errorf("%w: assignment id: %v", asynq.SkipRetry, err)
	}

	return w.bus.PublishSync(ctx, events.SLACheckDue{
		BaseEvent:    events.NewBaseEvent(),
		TenantID:     tenantID,
		LeadID:       leadID,
		AssignmentID: assignmentID,
		Phase:        payload.Phase,
	})
}

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	notificationID, err := uuid.Parse(payload.NotificationID)
	if err != nil {
		return fmt.Errorf("%w: notification id: %v", asynq.SkipRetry, err)
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("%w: tenant id: %v", asynq.SkipRetry, err)
	}

	return w.bus.PublishSync(ctx, events.NotificationOutboxDue{
		BaseEvent:      events.NewBaseEvent(),
		NotificationID: notificationID,
		TenantID:       tenantID,
	})
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
