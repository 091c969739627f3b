// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"orengen_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published after a lead row has been committed.
type LeadCreated struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	Domain   string    `json:"domain"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadRescored is published when enrichment data changes and the stored score
// was recomputed.
type LeadRescored struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	OldScore *int      `json:"oldScore,omitempty"`
	NewScore int       `json:"newScore"`
}

func (e LeadRescored) EventName() string { return "leads.lead.rescored" }

// LeadDeleted is published after a lead was removed.
type LeadDeleted struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
}

func (e LeadDeleted) EventName() string { return "leads.lead.deleted" }

// =============================================================================
// Speed-to-Lead Domain Events
// =============================================================================

// LeadAssigned is published when an owner was chosen for a lead.
type LeadAssigned struct {
	BaseEvent
	LeadID       uuid.UUID  `json:"leadId"`
	TenantID     uuid.UUID  `json:"tenantId"`
	AssignmentID uuid.UUID  `json:"assignmentId"`
	AssignedTo   uuid.UUID  `json:"assignedTo"`
	Reason       string     `json:"reason"`
	SLADeadline  *time.Time `json:"slaDeadline,omitempty"`
}

func (e LeadAssigned) EventName() string { return "speedtolead.lead.assigned" }

// SLABreached is published the first time an assignment is found past its
// deadline without a response.
type SLABreached struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	TenantID     uuid.UUID `json:"tenantId"`
	AssignmentID uuid.UUID `json:"assignmentId"`
	AssignedTo   uuid.UUID `json:"assignedTo"`
	Deadline     time.Time `json:"deadline"`
}

func (e SLABreached) EventName() string { return "speedtolead.sla.breached" }

// LeadEscalated is published after escalation notifications were queued.
type LeadEscalated struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	Actor    string    `json:"actor"`
	Reason   string    `json:"reason"`
	Queued   int       `json:"queued"`
}

func (e LeadEscalated) EventName() string { return "speedtolead.lead.escalated" }

// SLACheckDue is published by the scheduler worker when a deferred SLA check
// for an assignment fires.
type SLACheckDue struct {
	BaseEvent
	TenantID     uuid.UUID `json:"tenantId"`
	LeadID       uuid.UUID `json:"leadId"`
	AssignmentID uuid.UUID `json:"assignmentId"`
	Phase        string    `json:"phase"`
}

func (e SLACheckDue) EventName() string { return "speedtolead.sla.check_due" }

// =============================================================================
// Notification Domain Events
// =============================================================================

// NotificationQueued is published for every notification row created by the dispatcher.
type NotificationQueued struct {
	BaseEvent
	NotificationID uuid.UUID `json:"notificationId"`
	TenantID       uuid.UUID `json:"tenantId"`
	LeadID         uuid.UUID `json:"leadId"`
	Type           string    `json:"type"`
	Channel        string    `json:"channel"`
	Recipient      uuid.UUID `json:"recipient"`
}

func (e NotificationQueued) EventName() string { return "notification.queued" }

// NotificationOutboxDue is published by the scheduler worker when a claimed
// notification should be delivered.
type NotificationOutboxDue struct {
	BaseEvent
	NotificationID uuid.UUID `json:"notificationId"`
	TenantID       uuid.UUID `json:"tenantId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
