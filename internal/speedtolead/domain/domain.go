// Package domain contains the records owned by the speed-to-lead core.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Assignment records one ownership decision for a lead. Reassignment creates
// a new row; existing rows only ever gain a first response.
type Assignment struct {
	ID               uuid.UUID  `json:"id"`
	TenantID         uuid.UUID  `json:"tenantId"`
	LeadID           uuid.UUID  `json:"leadId"`
	AssignedTo       uuid.UUID  `json:"assignedTo"`
	AssignedAt       time.Time  `json:"assignedAt"`
	AssignmentReason string     `json:"assignmentReason"`
	SLADeadline      *time.Time `json:"slaDeadline,omitempty"`
	FirstResponseAt  *time.Time `json:"firstResponseAt,omitempty"`
	SLAMet           *bool      `json:"slaMet,omitempty"`
}

// NotificationType classifies what a notification is about.
type NotificationType string

const (
	NotificationNewLead    NotificationType = "new_lead"
	NotificationHighScore  NotificationType = "high_score"
	NotificationSLAWarning NotificationType = "sla_warning"
	NotificationSLABreach  NotificationType = "sla_breach"
	NotificationEscalation NotificationType = "escalation"
)

// NotificationStatus is the delivery state of a notification.
type NotificationStatus string

const (
	NotificationPending  NotificationStatus = "pending"
	NotificationEnqueued NotificationStatus = "enqueued"
	NotificationSent     NotificationStatus = "sent"
	NotificationFailed   NotificationStatus = "failed"
)

// Notification is one message addressed to one recipient on one channel.
type Notification struct {
	ID        uuid.UUID          `json:"id"`
	TenantID  uuid.UUID          `json:"tenantId"`
	LeadID    uuid.UUID          `json:"leadId"`
	Type      NotificationType   `json:"type"`
	Channel   string             `json:"channel"`
	Recipient uuid.UUID          `json:"recipient"`
	Payload   json.RawMessage    `json:"payload"`
	Status    NotificationStatus `json:"status"`
	Attempts  int                `json:"attempts"`
	LastError *string            `json:"lastError,omitempty"`
	RunAt     time.Time          `json:"runAt"`
	SentAt    *time.Time         `json:"sentAt,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Audit actions.
const (
	AuditActionEscalation = "escalation"
	AuditActionAssignment = "assignment"
	AuditActionSLABreach  = "sla_breach"
)

// AuditEntry is one append-only line in a lead's speed-to-lead history.
type AuditEntry struct {
	ID        uuid.UUID      `json:"id"`
	TenantID  uuid.UUID      `json:"tenantId"`
	LeadID    uuid.UUID      `json:"leadId"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Note      string         `json:"note"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
