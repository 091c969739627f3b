package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"orengen_backend/internal/events"
	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/internal/speedtolead/settings"
	"orengen_backend/platform/logger"

	"github.com/google/uuid"
)

type memoryOutbox struct {
	mu      sync.Mutex
	stored  []domain.Notification
	failFor map[uuid.UUID]bool
}

func (m *memoryOutbox) Insert(_ context.Context, n domain.Notification) (uuid.UUID, error) {
	if m.failFor[n.Recipient] {
		return uuid.Nil, errors.New("insert failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.New()
	m.stored = append(m.stored, n)
	return n.ID, nil
}

func TestDispatchFansOutPerChannelAndRecipient(t *testing.T) {
	outbox := &memoryOutbox{}
	bus := events.NewInMemoryBus(logger.Discard())
	var mu sync.Mutex
	published := 0
	bus.Subscribe(events.NotificationQueued{}.EventName(), events.HandlerFunc(func(context.Context, events.Event) error {
		mu.Lock()
		published++
		mu.Unlock()
		return nil
	}))

	d := New(outbox, bus, logger.Discard())
	a, b := uuid.New(), uuid.New()

	queued, err := d.Dispatch(context.Background(), Event{
		TenantID:   uuid.New(),
		LeadID:     uuid.New(),
		Type:       domain.NotificationHighScore,
		Recipients: []uuid.UUID{a, b, a},
		Channels:   []settings.Channel{settings.ChannelEmail, settings.ChannelSlack},
		Payload:    map[string]any{"score": 91},
	})
	bus.Wait()

	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if queued != 4 || len(outbox.stored) != 4 {
		t.Fatalf("expected 4 notifications, got queued=%d stored=%d", queued, len(outbox.stored))
	}
	if published != 4 {
		t.Fatalf("expected 4 queued events, got %d", published)
	}

	for _, n := range outbox.stored {
		if n.Status != domain.NotificationPending {
			t.Fatalf("expected pending status, got %s", n.Status)
		}
		var payload map[string]any
		if err := json.Unmarshal(n.Payload, &payload); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if payload["type"] != "high_score" || payload["score"] != float64(91) {
			t.Fatalf("unexpected payload %v", payload)
		}
	}
}

func TestDispatchIsolatesRecipientFailures(t *testing.T) {
	bad := uuid.New()
	good1, good2 := uuid.New(), uuid.New()
	outbox := &memoryOutbox{failFor: map[uuid.UUID]bool{bad: true}}
	d := New(outbox, nil, logger.Discard())

	queued, err := d.Dispatch(context.Background(), Event{
		TenantID:   uuid.New(),
		LeadID:     uuid.New(),
		Type:       domain.NotificationNewLead,
		Recipients: []uuid.UUID{good1, bad, good2},
		Channels:   []settings.Channel{settings.ChannelEmail},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if queued != 2 {
		t.Fatalf("expected 2 queued despite one failure, got %d", queued)
	}
}

func TestDispatchWithNoChannelsQueuesNothing(t *testing.T) {
	outbox := &memoryOutbox{}
	d := New(outbox, nil, logger.Discard())

	queued, err := d.Dispatch(context.Background(), Event{
		TenantID:   uuid.New(),
		LeadID:     uuid.New(),
		Type:       domain.NotificationEscalation,
		Recipients: []uuid.UUID{uuid.New()},
	})
	if err != nil || queued != 0 {
		t.Fatalf("expected nothing queued, got %d (%v)", queued, err)
	}
}

func TestDispatchRequiresTenantAndLead(t *testing.T) {
	d := New(&memoryOutbox{}, nil, logger.Discard())
	if _, err := d.Dispatch(context.Background(), Event{Type: domain.NotificationNewLead}); err == nil {
		t.Fatalf("expected error for missing identifiers")
	}
}
