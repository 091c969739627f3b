// Package dispatch fans speed-to-lead events out into pending notifications,
// one per channel and recipient. Delivery happens elsewhere.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"orengen_backend/internal/events"
	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/internal/speedtolead/settings"
	"orengen_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const maxParallelInserts = 4

// Outbox stores pending notifications.
type Outbox interface {
	Insert(ctx context.Context, n domain.Notification) (uuid.UUID, error)
}

// Event is one thing worth telling people about.
type Event struct {
	TenantID   uuid.UUID
	LeadID     uuid.UUID
	Type       domain.NotificationType
	Recipients []uuid.UUID
	Channels   []settings.Channel
	Payload    map[string]any
	// RunAt delays delivery; zero means now.
	RunAt time.Time
}

// Dispatcher queues notifications for delivery.
type Dispatcher struct {
	outbox Outbox
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time
}

func New(outbox Outbox, bus events.Bus, log *logger.Logger) *Dispatcher {
	return &Dispatcher{outbox: outbox, bus: bus, log: log, now: time.Now}
}

// Dispatch queues one notification per channel and distinct recipient and
// returns how many were stored. A failed insert is logged and does not stop
// the others; an error is returned only when the event itself is unusable.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (int, error) {
	if ev.TenantID == uuid.Nil || ev.LeadID == uuid.Nil {
		return 0, fmt.Errorf("dispatch %s: tenant and lead are required", ev.Type)
	}

	payload := map[string]any{
		"leadId": ev.LeadID.String(),
		"type":   string(ev.Type),
	}
	for k, v := range ev.Payload {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal notification payload: %w", err)
	}

	runAt := ev.RunAt
	if runAt.IsZero() {
		runAt = d.now().UTC()
	}

	recipients := distinct(ev.Recipients)
	var queued int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelInserts)
	for _, channel := range ev.Channels {
		for _, recipient := range recipients {
			n := domain.Notification{
				TenantID:  ev.TenantID,
				LeadID:    ev.LeadID,
				Type:      ev.Type,
				Channel:   string(channel),
				Recipient: recipient,
				Payload:   body,
				Status:    domain.NotificationPending,
				RunAt:     runAt,
			}
			g.Go(func() error {
				if d.queue(gctx, n) {
					atomic.AddInt32(&queued, 1)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	return int(queued), nil
}

func (d *Dispatcher) queue(ctx context.Context, n domain.Notification) bool {
	id, err := d.outbox.Insert(ctx, n)
	if err != nil {
		d.log.Warn("notification queue failed",
			"tenantId", n.TenantID, "leadId", n.LeadID, "type", n.Type,
			"channel", n.Channel, "recipient", n.Recipient, "error", err)
		return false
	}

	if d.bus != nil {
		d.bus.Publish(ctx, events.NotificationQueued{
			BaseEvent:      events.NewBaseEvent(),
			NotificationID: id,
			TenantID:       n.TenantID,
			LeadID:         n.LeadID,
			Type:           string(n.Type),
			Channel:        n.Channel,
			Recipient:      n.Recipient,
		})
	}
	return true
}

func distinct(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
