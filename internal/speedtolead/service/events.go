package service

import (
	"context"

	"orengen_backend/internal/events"
	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/platform/apperr"
)

// Subscribe registers the service for the lead and SLA events it reacts to.
func (s *Service) Subscribe(bus events.Bus) {
	bus.Subscribe(events.LeadCreated{}.EventName(), s)
	bus.Subscribe(events.LeadRescored{}.EventName(), s)
	bus.Subscribe(events.LeadDeleted{}.EventName(), s)
	bus.Subscribe(events.SLACheckDue{}.EventName(), s)
}

// Handle routes events to the appropriate handler method.
func (s *Service) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadCreated:
		_, err := s.ProcessNewLead(ctx, e.TenantID, e.LeadID)
		return err
	case events.LeadRescored:
		return s.handleLeadRescored(ctx, e)
	case events.LeadDeleted:
		return s.CancelLeadChecks(ctx, e.TenantID, e.LeadID)
	case events.SLACheckDue:
		return s.HandleSLACheck(ctx, e)
	default:
		s.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// handleLeadRescored retries assignment for leads that never got an owner and
// otherwise alerts on a score that just crossed the high-score threshold.
func (s *Service) handleLeadRescored(ctx context.Context, e events.LeadRescored) error {
	cfg, _, err := s.config.GetOrDefault(ctx, e.TenantID)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		return nil
	}

	_, err = s.assignments.LatestAssignment(ctx, e.TenantID, e.LeadID)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		if cfg.AutoAssignEnabled && len(cfg.EligibleUsers) > 0 {
			_, err := s.ProcessNewLead(ctx, e.TenantID, e.LeadID)
			return err
		}
	case err != nil:
		return err
	}

	if !cfg.NotifyOnHighScore || !crossedThreshold(e.OldScore, e.NewScore, cfg.HighScoreThreshold) {
		return nil
	}

	lead, err := s.leads.GetByID(ctx, e.LeadID, e.TenantID)
	if err != nil {
		return err
	}
	payload := s.leadPayload(lead, e.NewScore)
	if lead.AssignedTo != nil {
		payload["assignedTo"] = lead.AssignedTo.String()
	}
	s.notifyLead(ctx, cfg, e.TenantID, e.LeadID, domain.NotificationHighScore, cfg.EligibleUsers, payload)
	return nil
}

func crossedThreshold(oldScore *int, newScore, threshold int) bool {
	if newScore < threshold {
		return false
	}
	return oldScore == nil || *oldScore < threshold
}
