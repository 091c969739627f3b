package service

import (
	"context"
	"fmt"
	"time"

	"orengen_backend/internal/events"
	"orengen_backend/internal/leads/domain"
	"orengen_backend/internal/leads/repository"
	"orengen_backend/internal/leads/transport"
	"orengen_backend/internal/speedtolead/scoring"
	"orengen_backend/platform/apperr"
	"orengen_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository is the persistence the lead service needs.
type Repository interface {
	Create(ctx context.Context, p repository.CreateParams) (domain.Lead, error)
	GetByID(ctx context.Context, id, tenantID uuid.UUID) (domain.Lead, error)
	List(ctx context.Context, p repository.ListParams) ([]domain.Lead, int, error)
	UpdateEnrichment(ctx context.Context, id, tenantID uuid.UUID, p repository.EnrichmentParams) (domain.Lead, error)
	UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, from, to domain.Status) (domain.Lead, error)
	Delete(ctx context.Context, id, tenantID uuid.UUID) error
}

type Service struct {
	repo Repository
	bus  events.Bus
	log  *logger.Logger
	now  func() time.Time
}

func New(repo Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log, now: time.Now}
}

// Create stores a new lead and announces it. Speed-to-lead processing runs off
// the LeadCreated event, so its failures never undo the insert.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	normalized := domain.NormalizeDomain(req.Domain)
	if !domain.IsValidDomain(normalized) {
		return transport.LeadResponse{}, apperr.Validation("invalid domain")
	}

	lead, err := s.repo.Create(ctx, repository.CreateParams{
		TenantID:   tenantID,
		Domain:     normalized,
		Whois:      req.Whois,
		TechStack:  req.TechStack,
		Enrichment: req.Enrichment,
		CampaignID: req.CampaignID,
		ScrapedAt:  req.ScrapedAt,
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		TenantID:  tenantID,
		Domain:    lead.Domain,
	})

	return transport.ToLeadResponse(lead), nil
}

func (s *Service) GetByID(ctx context.Context, tenantID, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id, tenantID)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	params := repository.ListParams{
		TenantID: tenantID,
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	}
	if req.Status != "" {
		status := domain.Status(req.Status)
		params.Status = &status
	}
	if req.AssignedTo != "" {
		assignee, err := uuid.Parse(req.AssignedTo)
		if err != nil {
			return transport.LeadListResponse{}, apperr.Validation("invalid assignedTo")
		}
		params.AssignedTo = &assignee
	}

	leads, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	items := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, transport.ToLeadResponse(lead))
	}
	return transport.LeadListResponse{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// UpdateEnrichment replaces the lead's enrichment data and recomputes its score.
func (s *Service) UpdateEnrichment(ctx context.Context, tenantID, id uuid.UUID, req transport.UpdateEnrichmentRequest) (transport.LeadResponse, error) {
	current, err := s.repo.GetByID(ctx, id, tenantID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	candidate := current
	candidate.Whois = req.Whois
	candidate.TechStack = req.TechStack
	candidate.Enrichment = req.Enrichment
	score := scoring.Score(candidate, s.now())

	lead, err := s.repo.UpdateEnrichment(ctx, id, tenantID, repository.EnrichmentParams{
		Whois:      req.Whois,
		TechStack:  req.TechStack,
		Enrichment: req.Enrichment,
		Score:      score,
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}

	s.bus.Publish(ctx, events.LeadRescored{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		TenantID:  tenantID,
		OldScore:  current.LeadScore,
		NewScore:  score,
	})

	return transport.ToLeadResponse(lead), nil
}

// UpdateStatus moves the lead along the funnel.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, req transport.UpdateStatusRequest) (transport.LeadResponse, error) {
	current, err := s.repo.GetByID(ctx, id, tenantID)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if current.Status == req.Status {
		return transport.ToLeadResponse(current), nil
	}
	if !domain.CanTransition(current.Status, req.Status) {
		return transport.LeadResponse{}, apperr.Validation(fmt.Sprintf("invalid status transition from %s to %s", current.Status, req.Status))
	}

	lead, err := s.repo.UpdateStatus(ctx, id, tenantID, current.Status, req.Status)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id, tenantID); err != nil {
		return err
	}

	s.bus.Publish(ctx, events.LeadDeleted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    id,
		TenantID:  tenantID,
	})
	return nil
}
