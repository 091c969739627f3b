// Package service is the speed-to-lead orchestrator. It sequences scoring,
// assignment, SLA deadlines and notification fan-out for a lead and exposes
// SLA queries, first-response recording and escalation.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orengen_backend/internal/events"
	leaddomain "orengen_backend/internal/leads/domain"
	"orengen_backend/internal/scheduler"
	"orengen_backend/internal/speedtolead/assignment"
	"orengen_backend/internal/speedtolead/dispatch"
	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/internal/speedtolead/scoring"
	"orengen_backend/internal/speedtolead/settings"
	"orengen_backend/internal/speedtolead/sla"
	"orengen_backend/platform/apperr"
	"orengen_backend/platform/logger"

	"github.com/google/uuid"
)

// ActorSystem marks actions taken by the orchestrator itself.
const ActorSystem = "system"

// LeadStore reads and updates the lead records the orchestrator works on.
type LeadStore interface {
	GetByID(ctx context.Context, id, tenantID uuid.UUID) (leaddomain.Lead, error)
	UpdateScore(ctx context.Context, id, tenantID uuid.UUID, score int) error
}

// AssignmentStore persists assignments and the per-lead audit log.
// CreateAssignment also records the assignee as lead owner, atomically.
type AssignmentStore interface {
	CreateAssignment(ctx context.Context, a domain.Assignment) (domain.Assignment, error)
	GetAssignment(ctx context.Context, tenantID, id uuid.UUID) (domain.Assignment, error)
	LatestAssignment(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Assignment, error)
	ListAssignmentsForLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.Assignment, error)
	ListAssignmentsSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]domain.Assignment, error)
	RecordFirstResponse(ctx context.Context, tenantID, assignmentID uuid.UUID, respondedAt time.Time, slaMet bool) (bool, error)
	MarkBreached(ctx context.Context, tenantID, assignmentID uuid.UUID) (bool, error)
	AppendAudit(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error)
	ListAudit(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.AuditEntry, error)
}

// ConfigStore returns the tenant configuration, falling back to defaults.
type ConfigStore interface {
	GetOrDefault(ctx context.Context, tenantID uuid.UUID) (settings.Config, bool, error)
}

// AssigneeSelector picks an owner for a lead.
type AssigneeSelector interface {
	Assign(ctx context.Context, req assignment.Request) (uuid.UUID, error)
}

// NotificationDispatcher queues notifications.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, ev dispatch.Event) (int, error)
}

// ProcessResult is what ProcessNewLead did for a lead.
type ProcessResult struct {
	AssignedTo        *uuid.UUID `json:"assignedTo"`
	AssignmentID      *uuid.UUID `json:"assignmentId,omitempty"`
	NotificationsSent int        `json:"notificationsSent"`
	SLADeadline       *time.Time `json:"slaDeadline"`
}

// Service orchestrates speed-to-lead processing.
type Service struct {
	leads       LeadStore
	assignments AssignmentStore
	config      ConfigStore
	selector    AssigneeSelector
	dispatcher  NotificationDispatcher
	scheduler   scheduler.SLAScheduler
	bus         events.Bus
	log         *logger.Logger
	now         func() time.Time
}

// Deps groups the collaborators of Service. Scheduler may be nil, in which case
// no deferred SLA checks are planned.
type Deps struct {
	Leads       LeadStore
	Assignments AssignmentStore
	Config      ConfigStore
	Selector    AssigneeSelector
	Dispatcher  NotificationDispatcher
	Scheduler   scheduler.SLAScheduler
	Bus         events.Bus
	Log         *logger.Logger
}

func New(deps Deps) *Service {
	return &Service{
		leads:       deps.Leads,
		assignments: deps.Assignments,
		config:      deps.Config,
		selector:    deps.Selector,
		dispatcher:  deps.Dispatcher,
		scheduler:   deps.Scheduler,
		bus:         deps.Bus,
		log:         deps.Log,
		now:         time.Now,
	}
}

// ProcessNewLead runs the speed-to-lead pipeline for a freshly stored lead.
//
// Configuration problems degrade to "no assignment" with a warning. An
// unsupported strategy or a failed assignment write is returned as an error
// after notifications have been attempted, so the caller sees the failure
// while agents still hear about the lead.
func (s *Service) ProcessNewLead(ctx context.Context, tenantID, leadID uuid.UUID) (ProcessResult, error) {
	var result ProcessResult

	cfg, stored, err := s.config.GetOrDefault(ctx, tenantID)
	if err != nil {
		return result, fmt.Errorf("load speed-to-lead config: %w", err)
	}
	if !stored {
		s.log.Warn("no speed-to-lead config stored, using defaults", "tenantId", tenantID, "leadId", leadID)
	}
	if !cfg.Enabled {
		s.log.Debug("speed-to-lead disabled for tenant", "tenantId", tenantID, "leadId", leadID)
		return result, nil
	}

	lead, err := s.leads.GetByID(ctx, leadID, tenantID)
	if err != nil {
		return result, err
	}
	score := s.ensureScore(ctx, lead)

	var assignErr error
	if cfg.AutoAssignEnabled {
		if len(cfg.EligibleUsers) == 0 {
			s.log.Warn("auto-assign enabled without eligible users, lead left unassigned",
				"tenantId", tenantID, "leadId", leadID)
		} else {
			assigned, err := s.autoAssign(ctx, cfg, lead, score)
			switch {
			case err == nil:
				result.AssignedTo = &assigned.AssignedTo
				result.AssignmentID = &assigned.ID
				result.SLADeadline = assigned.SLADeadline
			case apperr.Is(err, apperr.KindUnsupported):
				s.log.Error("assignment strategy not supported", "tenantId", tenantID, "leadId", leadID,
					"strategy", cfg.AssignmentStrategy, "error", err)
				assignErr = err
			case errors.Is(err, assignment.ErrNoEligibleUsers):
				s.log.Warn("no eligible users for assignment", "tenantId", tenantID, "leadId", leadID)
			default:
				s.log.Error("lead assignment failed, lead left unassigned", "tenantId", tenantID, "leadId", leadID,
					"error", err)
				assignErr = err
			}
		}
	}

	base := s.leadPayload(lead, score)
	if result.AssignedTo != nil {
		base["assignedTo"] = result.AssignedTo.String()
	}
	if result.SLADeadline != nil {
		base["slaDeadline"] = result.SLADeadline.UTC()
	}

	if cfg.NotifyOnNewLead {
		recipients := cfg.EligibleUsers
		if result.AssignedTo != nil {
			recipients = []uuid.UUID{*result.AssignedTo}
		}
		result.NotificationsSent += s.notify(ctx, cfg, lead, domain.NotificationNewLead, recipients, base)
	}

	if cfg.NotifyOnHighScore && score >= cfg.HighScoreThreshold {
		result.NotificationsSent += s.notify(ctx, cfg, lead, domain.NotificationHighScore, cfg.EligibleUsers, base)
	}

	return result, assignErr
}

// ensureScore returns the stored score, computing and persisting it when the
// lead has not been scored yet.
func (s *Service) ensureScore(ctx context.Context, lead leaddomain.Lead) int {
	if lead.LeadScore != nil {
		return leaddomain.ClampScore(*lead.LeadScore)
	}

	score := leaddomain.ClampScore(scoring.Score(lead, s.now()))
	if err := s.leads.UpdateScore(ctx, lead.ID, lead.TenantID, score); err != nil {
		s.log.Warn("failed to persist lead score", "tenantId", lead.TenantID, "leadId", lead.ID, "error", err)
	}
	return score
}

func (s *Service) autoAssign(ctx context.Context, cfg settings.Config, lead leaddomain.Lead, score int) (domain.Assignment, error) {
	territory := ""
	if lead.Enrichment != nil {
		territory = lead.Enrichment.Country
	}

	userID, err := s.selector.Assign(ctx, assignment.Request{
		TenantID:      lead.TenantID,
		LeadID:        lead.ID,
		LeadScore:     score,
		EligibleUsers: cfg.EligibleUsers,
		Strategy:      cfg.AssignmentStrategy,
		Territory:     territory,
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	return s.createAssignment(ctx, cfg, lead.TenantID, lead.ID, userID, score, assignment.Reason(cfg.AssignmentStrategy), ActorSystem)
}

// createAssignment stores a new assignment, makes userID the lead owner and
// plans the SLA checks.
func (s *Service) createAssignment(ctx context.Context, cfg settings.Config, tenantID, leadID, userID uuid.UUID, score int, reason, actor string) (domain.Assignment, error) {
	assignedAt := s.now().UTC()
	a := domain.Assignment{
		TenantID:         tenantID,
		LeadID:           leadID,
		AssignedTo:       userID,
		AssignedAt:       assignedAt,
		AssignmentReason: reason,
	}
	if cfg.SLAEnabled {
		deadline := sla.ComputeDeadline(assignedAt, slaMinutes(cfg, score))
		a.SLADeadline = &deadline
	}

	created, err := s.assignments.CreateAssignment(ctx, a)
	if err != nil {
		return domain.Assignment{}, err
	}

	s.log.LeadAssigned(tenantID.String(), leadID.String(), userID.String(), reason)
	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       leadID,
		TenantID:     tenantID,
		AssignmentID: created.ID,
		AssignedTo:   userID,
		Reason:       reason,
		SLADeadline:  created.SLADeadline,
	})

	s.scheduleSLAChecks(ctx, created)

	metadata := map[string]any{"assignmentId": created.ID.String(), "assignedTo": userID.String()}
	if created.SLADeadline != nil {
		metadata["slaDeadline"] = created.SLADeadline.Format(time.RFC3339)
	}
	s.audit(ctx, domain.AuditEntry{
		TenantID: tenantID,
		LeadID:   leadID,
		Actor:    actor,
		Action:   domain.AuditActionAssignment,
		Note:     fmt.Sprintf("assigned (%s)", reason),
		Metadata: metadata,
	})

	return created, nil
}

func slaMinutes(cfg settings.Config, score int) int {
	if cfg.UsesTierSLA() {
		return scoring.Classify(score).SLAMinutes
	}
	return cfg.FirstResponseMinutes
}

func (s *Service) leadPayload(lead leaddomain.Lead, score int) map[string]any {
	return map[string]any{
		"domain": lead.Domain,
		"score":  score,
	}
}

// notify queues one notification type and returns how many were stored.
// Failures are logged; notifications never fail the caller.
func (s *Service) notify(ctx context.Context, cfg settings.Config, lead leaddomain.Lead, typ domain.NotificationType, recipients []uuid.UUID, payload map[string]any) int {
	return s.notifyLead(ctx, cfg, lead.TenantID, lead.ID, typ, recipients, payload)
}

func (s *Service) notifyLead(ctx context.Context, cfg settings.Config, tenantID, leadID uuid.UUID, typ domain.NotificationType, recipients []uuid.UUID, payload map[string]any) int {
	if len(recipients) == 0 || len(cfg.NotificationChannels) == 0 {
		s.log.Debug("notification skipped, no recipients or channels",
			"tenantId", tenantID, "leadId", leadID, "type", typ)
		return 0
	}

	queued, err := s.dispatcher.Dispatch(ctx, dispatch.Event{
		TenantID:   tenantID,
		LeadID:     leadID,
		Type:       typ,
		Recipients: recipients,
		Channels:   cfg.NotificationChannels,
		Payload:    payload,
	})
	if err != nil {
		s.log.Warn("notification dispatch failed", "tenantId", tenantID, "leadId", leadID, "type", typ, "error", err)
		return 0
	}
	return queued
}

func (s *Service) audit(ctx context.Context, entry domain.AuditEntry) {
	if _, err := s.assignments.AppendAudit(ctx, entry); err != nil {
		s.log.Warn("failed to append audit entry", "tenantId", entry.TenantID, "leadId", entry.LeadID,
			"action", entry.Action, "error", err)
	}
}
