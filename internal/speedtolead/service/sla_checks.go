package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orengen_backend/internal/events"
	"orengen_backend/internal/scheduler"
	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/internal/speedtolead/settings"
	"orengen_backend/internal/speedtolead/sla"
	"orengen_backend/platform/apperr"

	"github.com/google/uuid"
)

// deadlineGrace pushes the deadline check just past the deadline so the
// assignment is already overdue when it runs.
const deadlineGrace = time.Second

// ErrCheckTooEarly makes the job queue retry a deadline check that fired
// before the deadline.
var ErrCheckTooEarly = errors.New("sla check ran before deadline")

// CheckSLAStatus reports the SLA state of the lead's most recent assignment.
func (s *Service) CheckSLAStatus(ctx context.Context, tenantID, leadID uuid.UUID) (sla.StatusReport, error) {
	a, err := s.assignments.LatestAssignment(ctx, tenantID, leadID)
	if err != nil {
		return sla.StatusReport{}, err
	}
	return sla.CheckStatus(a, s.now()), nil
}

// RecordFirstResponse stores the first response on the lead's current
// assignment and reports whether the SLA was met. Recording twice keeps the
// first outcome.
func (s *Service) RecordFirstResponse(ctx context.Context, tenantID, leadID uuid.UUID, respondedAt time.Time) (bool, error) {
	a, err := s.assignments.LatestAssignment(ctx, tenantID, leadID)
	if err != nil {
		return false, err
	}
	if respondedAt.IsZero() {
		respondedAt = s.now()
	}
	respondedAt = respondedAt.UTC()

	_, slaMet, recorded := sla.RecordFirstResponse(a, respondedAt)
	if !recorded {
		return slaMet, nil
	}

	written, err := s.assignments.RecordFirstResponse(ctx, tenantID, a.ID, respondedAt, slaMet)
	if err != nil {
		return false, err
	}
	if !written {
		// Another caller recorded a response in between.
		current, err := s.assignments.GetAssignment(ctx, tenantID, a.ID)
		if err != nil {
			return false, err
		}
		_, met, _ := sla.RecordFirstResponse(current, respondedAt)
		return met, nil
	}

	if err := s.cancelSLAChecks(ctx, a.ID); err != nil {
		s.log.Warn("failed to cancel sla checks", "tenantId", tenantID, "assignmentId", a.ID, "error", err)
	}

	status := sla.StatusOK
	if !slaMet {
		status = sla.StatusBreached
	}
	s.log.SLAStatusChanged(tenantID.String(), leadID.String(), string(status), 0)
	return slaMet, nil
}

// GetSLAMetrics aggregates SLA outcomes for assignments made in the last
// windowDays days.
func (s *Service) GetSLAMetrics(ctx context.Context, tenantID uuid.UUID, windowDays int) (sla.Metrics, error) {
	if windowDays <= 0 {
		return sla.Metrics{}, apperr.Validation("windowDays must be positive")
	}
	now := s.now()
	since := now.AddDate(0, 0, -windowDays)

	assignments, err := s.assignments.ListAssignmentsSince(ctx, tenantID, since)
	if err != nil {
		return sla.Metrics{}, err
	}
	return sla.ComputeMetrics(assignments, now), nil
}

// scheduleSLAChecks plans the warning and deadline checks of a new assignment.
func (s *Service) scheduleSLAChecks(ctx context.Context, a domain.Assignment) {
	if s.scheduler == nil || a.SLADeadline == nil {
		return
	}
	deadline := *a.SLADeadline

	warnAt := deadline.Add(-sla.WarningWindow)
	if warnAt.After(s.now()) {
		s.schedule(ctx, a, scheduler.SLAPhaseWarning, warnAt)
	}
	s.schedule(ctx, a, scheduler.SLAPhaseDeadline, deadline.Add(deadlineGrace))
}

func (s *Service) schedule(ctx context.Context, a domain.Assignment, phase string, runAt time.Time) {
	err := s.scheduler.ScheduleSLACheck(ctx, scheduler.SLACheckPayload{
		TenantID:     a.TenantID.String(),
		LeadID:       a.LeadID.String(),
		AssignmentID: a.ID.String(),
		Phase:        phase,
	}, runAt)
	if err != nil {
		s.log.Warn("failed to schedule sla check", "tenantId", a.TenantID, "assignmentId", a.ID,
			"phase", phase, "error", err)
	}
}

func (s *Service) cancelSLAChecks(ctx context.Context, assignmentID uuid.UUID) error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.CancelSLAChecks(ctx, assignmentID)
}

// HandleSLACheck runs one deferred SLA check. It is safe to run more than
// once: every branch re-reads the assignment and outcomes are stored with
// compare-and-set.
func (s *Service) HandleSLACheck(ctx context.Context, job events.SLACheckDue) error {
	a, err := s.assignments.GetAssignment(ctx, job.TenantID, job.AssignmentID)
	if apperr.Is(err, apperr.KindNotFound) {
		s.log.Info("sla check for unknown assignment dropped", "tenantId", job.TenantID, "assignmentId", job.AssignmentID)
		return nil
	}
	if err != nil {
		return err
	}
	if a.FirstResponseAt != nil || a.SLADeadline == nil {
		return nil
	}

	latest, err := s.assignments.LatestAssignment(ctx, a.TenantID, a.LeadID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return err
	}
	if err == nil && latest.ID != a.ID {
		s.log.Debug("sla check for superseded assignment dropped", "tenantId", a.TenantID, "assignmentId", a.ID)
		return nil
	}

	cfg, _, err := s.config.GetOrDefault(ctx, a.TenantID)
	if err != nil {
		return err
	}

	switch job.Phase {
	case scheduler.SLAPhaseWarning:
		return s.warn(ctx, cfg, a)
	case scheduler.SLAPhaseDeadline:
		return s.breach(ctx, cfg, a)
	case scheduler.SLAPhaseEscalation:
		if !cfg.EscalationEnabled {
			return nil
		}
		return s.EscalateLead(ctx, a.TenantID, a.LeadID, "first response SLA breached", ActorSystem)
	default:
		return apperr.Validation(fmt.Sprintf("unknown sla check phase: %s", job.Phase))
	}
}

func (s *Service) warn(ctx context.Context, cfg settings.Config, a domain.Assignment) error {
	report := sla.CheckStatus(a, s.now())
	if report.Status != sla.StatusWarning {
		return nil
	}
	s.log.SLAStatusChanged(a.TenantID.String(), a.LeadID.String(), string(report.Status), derefInt(report.MinutesRemaining))

	payload := s.assignmentPayload(ctx, a)
	payload["minutesRemaining"] = derefInt(report.MinutesRemaining)
	s.notifyLead(ctx, cfg, a.TenantID, a.LeadID, domain.NotificationSLAWarning, []uuid.UUID{a.AssignedTo}, payload)
	return nil
}

func (s *Service) breach(ctx context.Context, cfg settings.Config, a domain.Assignment) error {
	if !sla.IsOverdue(a, s.now()) {
		return ErrCheckTooEarly
	}

	changed, err := s.assignments.MarkBreached(ctx, a.TenantID, a.ID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.log.SLAStatusChanged(a.TenantID.String(), a.LeadID.String(), string(sla.StatusBreached), 0)
	deadline := a.SLADeadline.UTC()

	payload := s.assignmentPayload(ctx, a)
	payload["minutesRemaining"] = 0
	s.notifyLead(ctx, cfg, a.TenantID, a.LeadID, domain.NotificationSLABreach, []uuid.UUID{a.AssignedTo}, payload)

	s.bus.Publish(ctx, events.SLABreached{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       a.LeadID,
		TenantID:     a.TenantID,
		AssignmentID: a.ID,
		AssignedTo:   a.AssignedTo,
		Deadline:     deadline,
	})

	s.audit(ctx, domain.AuditEntry{
		TenantID: a.TenantID,
		LeadID:   a.LeadID,
		Actor:    ActorSystem,
		Action:   domain.AuditActionSLABreach,
		Note:     fmt.Sprintf("no first response by %s", deadline.Format(time.RFC3339)),
		Metadata: map[string]any{"assignmentId": a.ID.String(), "assignedTo": a.AssignedTo.String()},
	})

	if cfg.EscalationEnabled && s.scheduler != nil {
		delay := time.Duration(cfg.EscalationDelayMinutes) * time.Minute
		s.schedule(ctx, a, scheduler.SLAPhaseEscalation, s.now().Add(delay))
	}
	return nil
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// assignmentPayload describes an assignment for notification templates. The
// lead lookup is best effort.
func (s *Service) assignmentPayload(ctx context.Context, a domain.Assignment) map[string]any {
	payload := map[string]any{"assignedTo": a.AssignedTo.String()}
	if a.SLADeadline != nil {
		payload["slaDeadline"] = a.SLADeadline.UTC()
	}
	lead, err := s.leads.GetByID(ctx, a.LeadID, a.TenantID)
	if err != nil {
		s.log.Debug("lead lookup for notification failed", "tenantId", a.TenantID, "leadId", a.LeadID, "error", err)
		return payload
	}
	payload["domain"] = lead.Domain
	if lead.LeadScore != nil {
		payload["score"] = *lead.LeadScore
	}
	return payload
}
