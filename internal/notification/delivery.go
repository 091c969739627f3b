package notification

import (
	"context"
	"encoding/json"
	"time"

	"orengen_backend/internal/notification/channels"
	"orengen_backend/internal/notification/outbox"
	"orengen_backend/internal/notification/recipients"
	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/platform/apperr"
	"orengen_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	outboxRetryBaseDelay = 30 * time.Second
	outboxRetryMaxDelay  = 15 * time.Minute

	invalidOutboxPayloadPrefix = "invalid payload: "
)

// OutboxStore is the part of the outbox the deliverer drives.
type OutboxStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Notification, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string, runAt time.Time) error
}

// RecipientDirectory resolves contact details.
type RecipientDirectory interface {
	Get(ctx context.Context, tenantID, userID uuid.UUID) (recipients.Contact, error)
}

// ChannelSender delivers a resolved message.
type ChannelSender interface {
	Send(ctx context.Context, msg channels.Message) error
}

// Deliverer moves one stored notification to sent or failed, or back to
// pending with a delay when the failure is worth retrying.
type Deliverer struct {
	outbox    OutboxStore
	directory RecipientDirectory
	sender    ChannelSender
	log       *logger.Logger
	now       func() time.Time
}

func NewDeliverer(store OutboxStore, directory RecipientDirectory, sender ChannelSender, log *logger.Logger) *Deliverer {
	return &Deliverer{outbox: store, directory: directory, sender: sender, log: log, now: time.Now}
}

// Deliver returns an error only when the notification could not be loaded or
// claimed; delivery failures are recorded on the row.
func (d *Deliverer) Deliver(ctx context.Context, id uuid.UUID) error {
	n, process, err := d.prepare(ctx, id)
	if err != nil || !process {
		return err
	}

	var content channels.Content
	if err := json.Unmarshal(n.Payload, &content); err != nil {
		_ = d.outbox.MarkFailed(ctx, n.ID, invalidOutboxPayloadPrefix+err.Error())
		d.log.Warn("notification payload invalid", "notificationId", n.ID, "error", err)
		return nil
	}
	if content.LeadID == "" {
		content.LeadID = n.LeadID.String()
	}
	if content.Type == "" {
		content.Type = string(n.Type)
	}

	contact, err := d.directory.Get(ctx, n.TenantID, n.Recipient)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			_ = d.outbox.MarkFailed(ctx, n.ID, "recipient not found")
			d.log.Warn("notification recipient not found", "notificationId", n.ID, "recipient", n.Recipient)
			return nil
		}
		d.handleDeliveryError(ctx, n, err)
		return nil
	}

	sendErr := d.sender.Send(ctx, channels.Message{Notification: n, Recipient: contact, Content: content})
	if sendErr != nil {
		d.handleDeliveryError(ctx, n, sendErr)
		return nil
	}

	if err := d.outbox.MarkSent(ctx, n.ID); err != nil {
		d.log.Error("notification sent but not marked", "notificationId", n.ID, "error", err)
		return err
	}
	d.log.Info("notification delivered",
		"notificationId", n.ID, "tenantId", n.TenantID, "leadId", n.LeadID,
		"type", n.Type, "channel", n.Channel)
	return nil
}

func (d *Deliverer) prepare(ctx context.Context, id uuid.UUID) (domain.Notification, bool, error) {
	n, err := d.outbox.GetByID(ctx, id)
	if err != nil {
		return domain.Notification{}, false, err
	}
	if n.Status == domain.NotificationSent || n.Status == domain.NotificationFailed {
		d.log.Debug("notification already settled; skipping", "notificationId", n.ID, "status", n.Status)
		return n, false, nil
	}
	if err := d.outbox.MarkProcessing(ctx, n.ID); err != nil {
		return domain.Notification{}, false, err
	}
	n.Attempts++
	return n, true, nil
}

func (d *Deliverer) handleDeliveryError(ctx context.Context, n domain.Notification, deliveryErr error) {
	if channels.IsPermanent(deliveryErr) || n.Attempts >= outbox.MaxAttempts {
		_ = d.outbox.MarkFailed(ctx, n.ID, deliveryErr.Error())
		d.log.Warn("notification delivery failed",
			"notificationId", n.ID,
			"channel", n.Channel,
			"attempt", n.Attempts,
			"maxAttempts", outbox.MaxAttempts,
			"error", deliveryErr,
		)
		return
	}

	retryAt := d.now().UTC().Add(computeOutboxRetryDelay(n.Attempts))
	msg := deliveryErr.Error()
	if err := d.outbox.MarkPending(ctx, n.ID, &msg, retryAt); err != nil {
		_ = d.outbox.MarkFailed(ctx, n.ID, msg)
		d.log.Error("notification retry scheduling failed; marked failed",
			"notificationId", n.ID, "attempt", n.Attempts, "error", err)
		return
	}

	d.log.Warn("notification scheduled retry",
		"notificationId", n.ID,
		"channel", n.Channel,
		"attempt", n.Attempts,
		"retryAt", retryAt,
		"error", deliveryErr,
	)
}

func computeOutboxRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := outboxRetryBaseDelay << (attempt - 1)
	if delay > outboxRetryMaxDelay {
		return outboxRetryMaxDelay
	}
	return delay
}
