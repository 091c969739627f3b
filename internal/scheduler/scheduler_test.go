package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeClaimer struct {
	pending  []domain.Notification
	requeued map[uuid.UUID]string
	// enqueuedAt holds claimed rows by their last update.
	enqueuedAt  map[uuid.UUID]time.Time
	reapCutoffs []time.Time
}

func (f *fakeClaimer) RequeueStale(_ context.Context, before time.Time) (int64, error) {
	f.reapCutoffs = append(f.reapCutoffs, before)
	var n int64
	for id, at := range f.enqueuedAt {
		if at.Before(before) {
			delete(f.enqueuedAt, id)
			f.pending = append(f.pending, domain.Notification{ID: id, RunAt: at})
			n++
		}
	}
	return n, nil
}

func (f *fakeClaimer) ClaimPending(_ context.Context, limit int) ([]domain.Notification, error) {
	if limit < len(f.pending) {
		out := f.pending[:limit]
		f.pending = f.pending[limit:]
		return out, nil
	}
	out := f.pending
	f.pending = nil
	return out, nil
}

func (f *fakeClaimer) MarkPending(_ context.Context, id uuid.UUID, lastError *string, _ time.Time) error {
	if f.requeued == nil {
		f.requeued = map[uuid.UUID]string{}
	}
	f.requeued[id] = *lastError
	return nil
}

type fakeEnqueuer struct {
	failFor map[string]bool
	tasks   []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	payload, _ := ParseNotificationOutboxDuePayload(task)
	if f.failFor[payload.NotificationID] {
		return nil, errors.New("redis unavailable")
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestDispatchOnceEnqueuesClaimedBatch(t *testing.T) {
	ok := domain.Notification{ID: uuid.New(), TenantID: uuid.New(), RunAt: time.Now()}
	broken := domain.Notification{ID: uuid.New(), TenantID: uuid.New(), RunAt: time.Now()}
	later := domain.Notification{ID: uuid.New(), TenantID: uuid.New(), RunAt: time.Now()}

	claimer := &fakeClaimer{pending: []domain.Notification{ok, broken, later}}
	enqueuer := &fakeEnqueuer{failFor: map[string]bool{broken.ID.String(): true}}
	d := newDispatcher(enqueuer, "default", claimer, logger.Discard(), time.Second, 2)

	if n := d.dispatchOnce(context.Background()); n != 1 {
		t.Fatalf("expected 1 enqueued in first batch, got %d", n)
	}
	if claimer.requeued[broken.ID] != "redis unavailable" {
		t.Fatalf("expected failed enqueue to return to pending, got %v", claimer.requeued)
	}
	if n := d.dispatchOnce(context.Background()); n != 1 {
		t.Fatalf("expected remaining notification in second batch, got %d", n)
	}

	payload, err := ParseNotificationOutboxDuePayload(enqueuer.tasks[0])
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.NotificationID != ok.ID.String() || payload.TenantID != ok.TenantID.String() {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if enqueuer.tasks[0].Type() != TaskNotificationOutboxDue {
		t.Fatalf("unexpected task type %q", enqueuer.tasks[0].Type())
	}
}

func TestNewDispatcherDefaults(t *testing.T) {
	d := newDispatcher(&fakeEnqueuer{}, "default", &fakeClaimer{}, logger.Discard(), 0, 0)
	if d.interval != defaultOutboxPollInterval || d.batch != defaultOutboxBatchSize || d.staleAfter != defaultOutboxStaleAfter {
		t.Fatalf("expected defaults, got %v %d %v", d.interval, d.batch, d.staleAfter)
	}
}

func TestReapStaleRequeuesLostClaims(t *testing.T) {
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	lost := uuid.New()
	inFlight := uuid.New()
	claimer := &fakeClaimer{enqueuedAt: map[uuid.UUID]time.Time{
		lost:     clock.Add(-20 * time.Minute),
		inFlight: clock.Add(-time.Minute),
	}}
	enqueuer := &fakeEnqueuer{}
	d := newDispatcher(enqueuer, "default", claimer, logger.Discard(), time.Second, 10)
	d.now = func() time.Time { return clock }

	if n := d.reapStale(context.Background()); n != 1 {
		t.Fatalf("expected 1 stale notification requeued, got %d", n)
	}
	if want := clock.Add(-defaultOutboxStaleAfter); !claimer.reapCutoffs[0].Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, claimer.reapCutoffs[0])
	}
	if _, ok := claimer.enqueuedAt[inFlight]; !ok {
		t.Fatal("recent claim must stay enqueued")
	}

	if n := d.dispatchOnce(context.Background()); n != 1 {
		t.Fatalf("expected requeued notification to be dispatched again, got %d", n)
	}
	payload, err := ParseNotificationOutboxDuePayload(enqueuer.tasks[0])
	if err != nil || payload.NotificationID != lost.String() {
		t.Fatalf("expected task for lost notification, got %+v %v", payload, err)
	}

	clock = clock.Add(30 * time.Second)
	d.reapStale(context.Background())
	if len(claimer.reapCutoffs) != 1 {
		t.Fatalf("expected reaping to be throttled, got %d runs", len(claimer.reapCutoffs))
	}
	clock = clock.Add(outboxReapInterval)
	d.reapStale(context.Background())
	if len(claimer.reapCutoffs) != 2 {
		t.Fatalf("expected a second reap after the interval, got %d runs", len(claimer.reapCutoffs))
	}
}

func TestSLACheckTaskRoundTrip(t *testing.T) {
	assignmentID := uuid.New().String()
	task, err := NewSLACheckTask(SLACheckPayload{TenantID: "t", LeadID: "l", AssignmentID: assignmentID, Phase: SLAPhaseDeadline})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TaskSLACheck {
		t.Fatalf("unexpected type %q", task.Type())
	}
	payload, err := ParseSLACheckPayload(task)
	if err != nil || payload.Phase != SLAPhaseDeadline || payload.AssignmentID != assignmentID {
		t.Fatalf("unexpected payload %+v (%v)", payload, err)
	}
	if got := SLACheckTaskID(assignmentID, SLAPhaseWarning); got != "sla:"+assignmentID+":warning" {
		t.Fatalf("unexpected task id %q", got)
	}
}

type fakePurger struct {
	sentBefore, failedBefore time.Time
}

func (f *fakePurger) DeleteSettledBefore(_ context.Context, sentBefore, failedBefore time.Time) (int64, error) {
	f.sentBefore, f.failedBefore = sentBefore, failedBefore
	return 3, nil
}

func TestNotificationRetentionCutoffs(t *testing.T) {
	purger := &fakePurger{}
	r := NewNotificationRetention(purger, logger.Discard(), 0, 24*time.Hour, 48*time.Hour)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.cleanup(context.Background())

	if !purger.sentBefore.Equal(now.Add(-24*time.Hour)) || !purger.failedBefore.Equal(now.Add(-48*time.Hour)) {
		t.Fatalf("unexpected cutoffs %v %v", purger.sentBefore, purger.failedBefore)
	}
}
