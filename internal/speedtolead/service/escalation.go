package service

import (
	"context"
	"errors"
	"fmt"

	"orengen_backend/internal/events"
	"orengen_backend/internal/speedtolead/assignment"
	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/internal/speedtolead/scoring"
	"orengen_backend/platform/apperr"
	"orengen_backend/platform/sanitize"

	"github.com/google/uuid"
)

// EscalateLead queues an escalation for every escalation recipient on every
// configured channel and records it in the lead's audit log. It does nothing
// when escalation is disabled for the tenant.
func (s *Service) EscalateLead(ctx context.Context, tenantID, leadID uuid.UUID, reason, actor string) error {
	reason = sanitize.Text(reason)
	if reason == "" {
		return apperr.Validation("escalation reason is required")
	}
	if actor == "" {
		actor = ActorSystem
	}

	cfg, _, err := s.config.GetOrDefault(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load speed-to-lead config: %w", err)
	}
	if !cfg.EscalationEnabled {
		s.log.Info("escalation disabled, request ignored", "tenantId", tenantID, "leadId", leadID, "actor", actor)
		return nil
	}

	lead, err := s.leads.GetByID(ctx, leadID, tenantID)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"domain": lead.Domain,
		"reason": reason,
	}
	if lead.LeadScore != nil {
		payload["score"] = *lead.LeadScore
	}
	if lead.AssignedTo != nil {
		payload["assignedTo"] = lead.AssignedTo.String()
	}

	queued := s.notifyLead(ctx, cfg, tenantID, leadID, domain.NotificationEscalation, cfg.EscalationRecipients, payload)

	s.audit(ctx, domain.AuditEntry{
		TenantID: tenantID,
		LeadID:   leadID,
		Actor:    actor,
		Action:   domain.AuditActionEscalation,
		Note:     reason,
		Metadata: map[string]any{"queued": queued, "recipients": len(cfg.EscalationRecipients)},
	})

	s.bus.Publish(ctx, events.LeadEscalated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		TenantID:  tenantID,
		Actor:     actor,
		Reason:    reason,
		Queued:    queued,
	})
	return nil
}

// ReassignLead hands the lead to userID. The previous assignment is kept for
// history and its pending SLA checks are cancelled.
func (s *Service) ReassignLead(ctx context.Context, tenantID, leadID, userID uuid.UUID, actor string) (domain.Assignment, error) {
	if userID == uuid.Nil {
		return domain.Assignment{}, apperr.Validation("userId is required")
	}
	if actor == "" {
		actor = ActorSystem
	}

	lead, err := s.leads.GetByID(ctx, leadID, tenantID)
	if err != nil {
		return domain.Assignment{}, err
	}
	cfg, _, err := s.config.GetOrDefault(ctx, tenantID)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("load speed-to-lead config: %w", err)
	}

	previous, err := s.assignments.LatestAssignment(ctx, tenantID, leadID)
	switch {
	case err == nil:
		if err := s.cancelSLAChecks(ctx, previous.ID); err != nil {
			s.log.Warn("failed to cancel sla checks", "tenantId", tenantID, "assignmentId", previous.ID, "error", err)
		}
	case !apperr.Is(err, apperr.KindNotFound):
		return domain.Assignment{}, err
	}

	score := s.ensureScore(ctx, lead)
	created, err := s.createAssignment(ctx, cfg, tenantID, leadID, userID, score, assignment.ReasonManual, actor)
	if err != nil {
		return domain.Assignment{}, err
	}

	if cfg.NotifyOnNewLead {
		payload := s.leadPayload(lead, score)
		payload["assignedTo"] = userID.String()
		if created.SLADeadline != nil {
			payload["slaDeadline"] = created.SLADeadline.UTC()
		}
		s.notify(ctx, cfg, lead, domain.NotificationNewLead, []uuid.UUID{userID}, payload)
	}
	return created, nil
}

// Priority is a lead's score as seen at read time.
type Priority struct {
	Score        int    `json:"score"`
	DecayedScore int    `json:"decayedScore"`
	Tier         string `json:"tier"`
	Priority     string `json:"priority"`
	SLAMinutes   int    `json:"slaMinutes"`
}

// LeadPriority applies time decay to the stored score and classifies the
// result. The stored score is not changed.
func (s *Service) LeadPriority(ctx context.Context, tenantID, leadID uuid.UUID) (Priority, error) {
	lead, err := s.leads.GetByID(ctx, leadID, tenantID)
	if err != nil {
		return Priority{}, err
	}

	var score int
	if lead.LeadScore != nil {
		score = *lead.LeadScore
	} else {
		score = scoring.Score(lead, s.now())
	}

	since := lead.ScrapedAt
	if since.IsZero() {
		since = lead.CreatedAt
	}
	age := s.now().Sub(since)
	if age < 0 {
		age = 0
	}

	decayed := scoring.Decay(score, age)
	tier := scoring.Classify(decayed)
	return Priority{
		Score:        score,
		DecayedScore: decayed,
		Tier:         tier.Name,
		Priority:     tier.Priority,
		SLAMinutes:   tier.SLAMinutes,
	}, nil
}

// ListAudit returns the lead's speed-to-lead history, oldest first.
func (s *Service) ListAudit(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.AuditEntry, error) {
	return s.assignments.ListAudit(ctx, tenantID, leadID)
}

// CancelLeadChecks drops every pending SLA check for the lead's assignments.
func (s *Service) CancelLeadChecks(ctx context.Context, tenantID, leadID uuid.UUID) error {
	if s.scheduler == nil {
		return nil
	}
	assignments, err := s.assignments.ListAssignmentsForLead(ctx, tenantID, leadID)
	if err != nil {
		return err
	}

	var errs []error
	for _, a := range assignments {
		if a.FirstResponseAt != nil {
			continue
		}
		if err := s.scheduler.CancelSLAChecks(ctx, a.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
