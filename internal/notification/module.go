// Package notification delivers speed-to-lead notifications stored in the
// outbox and pushes live updates to connected agents.
// This module subscribes to events and inverts the dependency: the core
// only queues notifications and never talks to email, SMS or HTTP endpoints.
package notification

import (
	"context"
	"time"

	"orengen_backend/internal/email"
	"orengen_backend/internal/events"
	apphttp "orengen_backend/internal/http"
	"orengen_backend/internal/notification/channels"
	notifhandler "orengen_backend/internal/notification/handler"
	notificationoutbox "orengen_backend/internal/notification/outbox"
	"orengen_backend/internal/notification/recipients"
	"orengen_backend/internal/notification/sse"
	"orengen_backend/platform/config"
	"orengen_backend/platform/httpkit"
	"orengen_backend/platform/logger"
	"orengen_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig is what the notification module reads from configuration.
type ModuleConfig interface {
	config.NotificationConfig
	config.SMSConfig
	config.WebhookConfig
}

// Module handles all notification-related event subscriptions.
type Module struct {
	outbox    *notificationoutbox.Repository
	contacts  *recipients.Repository
	deliverer *Deliverer
	sse       *sse.Service
	live      sse.Publisher
	handler   *notifhandler.HTTPHandler
	log       *logger.Logger
}

// New creates the notification module with the channel senders the
// configuration enables.
func New(pool *pgxpool.Pool, sender email.Sender, cfg ModuleConfig, val *validator.Validator, log *logger.Logger) *Module {
	store := notificationoutbox.New(pool)
	contacts := recipients.New(pool)
	registry := NewChannelRegistry(sender, cfg)

	live := sse.New(log)
	return &Module{
		outbox:    store,
		contacts:  contacts,
		deliverer: NewDeliverer(store, contacts, registry, log),
		sse:       live,
		live:      live,
		handler:   notifhandler.NewHTTPHandler(store, contacts, val),
		log:       log,
	}
}

// NewChannelRegistry wires one sender per channel. SMS is only registered
// when a gateway is configured; notifications for it fail permanently.
func NewChannelRegistry(sender email.Sender, cfg ModuleConfig) *channels.Registry {
	timeout := cfg.GetWebhookTimeout()
	senders := []channels.Sender{
		channels.NewEmailSender(sender, cfg.GetAppBaseURL()),
		channels.NewWebhookSender(cfg.GetWebhookSigningSecret(), timeout),
		channels.NewSlackSender(cfg.GetAppBaseURL(), timeout),
	}
	if cfg.IsSMSEnabled() {
		senders = append(senders, channels.NewSMSSender(cfg.GetSMSGatewayURL(), cfg.GetSMSGatewayKey(), cfg.GetSMSDefaultRegion(), timeout))
	}
	return channels.NewRegistry(senders...)
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// Outbox exposes the notification store for the dispatcher and the scheduler.
func (m *Module) Outbox() *notificationoutbox.Repository { return m.outbox }

// SSE exposes the live update service.
func (m *Module) SSE() *sse.Service { return m.sse }

// RelayLiveUpdates sends live updates raised by this process through relay
// instead of to local connections. The scheduler serves no SSE clients.
func (m *Module) RelayLiveUpdates(relay *sse.Relay) { m.live = relay }

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	notifications := ctx.Protected.Group("/notifications")
	m.handler.RegisterRoutes(notifications)
	notifications.GET("/stream", m.sse.Handler(streamUserID, streamTenantID))

	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/notification-contacts"))
}

func streamUserID(c *gin.Context) (uuid.UUID, bool) {
	id := httpkit.GetIdentity(c)
	if !id.IsAuthenticated() {
		return uuid.Nil, false
	}
	return id.UserID(), true
}

func streamTenantID(c *gin.Context) (uuid.UUID, bool) {
	tenantID := httpkit.GetIdentity(c).TenantID()
	if tenantID == nil {
		return uuid.Nil, false
	}
	return *tenantID, true
}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), m)
	bus.Subscribe(events.NotificationQueued{}.EventName(), m)
	bus.Subscribe(events.LeadAssigned{}.EventName(), m)
	bus.Subscribe(events.SLABreached{}.EventName(), m)
	bus.Subscribe(events.LeadEscalated{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.NotificationOutboxDue:
		return m.handleNotificationOutboxDue(ctx, e)
	case events.NotificationQueued:
		m.live.Publish(e.Recipient, sse.Event{
			Type:   sse.EventNotificationQueued,
			LeadID: e.LeadID,
			Data:   map[string]any{"notificationId": e.NotificationID, "type": e.Type, "channel": e.Channel},
		})
		return nil
	case events.LeadAssigned:
		m.live.Publish(e.AssignedTo, sse.Event{
			Type:    sse.EventLeadAssigned,
			LeadID:  e.LeadID,
			Message: "lead assigned to you",
			Data:    map[string]any{"reason": e.Reason, "slaDeadline": e.SLADeadline},
		})
		return nil
	case events.SLABreached:
		m.live.Publish(e.AssignedTo, sse.Event{
			Type:   sse.EventSLABreached,
			LeadID: e.LeadID,
			Data:   map[string]any{"deadline": e.Deadline.Format(time.RFC3339)},
		})
		return nil
	case events.LeadEscalated:
		m.live.PublishToTenant(e.TenantID, sse.Event{
			Type:    sse.EventLeadEscalated,
			LeadID:  e.LeadID,
			Message: e.Reason,
			Data:    map[string]any{"actor": e.Actor, "queued": e.Queued},
		})
		return nil
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleNotificationOutboxDue(ctx context.Context, e events.NotificationOutboxDue) error {
	m.log.Debug("processing outbox due event", "notificationId", e.NotificationID, "tenantId", e.TenantID)
	return m.deliverer.Deliver(ctx, e.NotificationID)
}
