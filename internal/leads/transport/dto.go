package transport

import (
	"time"

	"orengen_backend/internal/leads/domain"

	"github.com/google/uuid"
)

type CreateLeadRequest struct {
	Domain     string                 `json:"domain" validate:"required,max=253,hostname_lead"`
	Whois      *domain.WhoisData      `json:"whoisData,omitempty"`
	TechStack  *domain.TechStack      `json:"techStack,omitempty"`
	Enrichment *domain.EnrichmentData `json:"enrichmentData,omitempty"`
	CampaignID *uuid.UUID             `json:"campaignId,omitempty"`
	ScrapedAt  *time.Time             `json:"scrapedAt,omitempty"`
}

type UpdateEnrichmentRequest struct {
	Whois      *domain.WhoisData      `json:"whoisData,omitempty"`
	TechStack  *domain.TechStack      `json:"techStack,omitempty"`
	Enrichment *domain.EnrichmentData `json:"enrichmentData,omitempty"`
}

type UpdateStatusRequest struct {
	Status domain.Status `json:"status" validate:"required,oneof=new enriched qualified contacted converted rejected"`
}

type ListLeadsRequest struct {
	Status     string `form:"status" validate:"omitempty,oneof=new enriched qualified contacted converted rejected"`
	AssignedTo string `form:"assignedTo" validate:"omitempty,uuid"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	PageSize   int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

type LeadResponse struct {
	ID             uuid.UUID              `json:"id"`
	Domain         string                 `json:"domain"`
	Status         domain.Status          `json:"status"`
	LeadScore      *int                   `json:"leadScore"`
	AssignedTo     *uuid.UUID             `json:"assignedTo"`
	WhoisData      *domain.WhoisData      `json:"whoisData,omitempty"`
	TechStack      *domain.TechStack      `json:"techStack,omitempty"`
	EnrichmentData *domain.EnrichmentData `json:"enrichmentData,omitempty"`
	CampaignID     *uuid.UUID             `json:"campaignId,omitempty"`
	ScrapedAt      time.Time              `json:"scrapedAt"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

type LeadListResponse struct {
	Items    []LeadResponse `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

func ToLeadResponse(lead domain.Lead) LeadResponse {
	return LeadResponse{
		ID:             lead.ID,
		Domain:         lead.Domain,
		Status:         lead.Status,
		LeadScore:      lead.LeadScore,
		AssignedTo:     lead.AssignedTo,
		WhoisData:      lead.Whois,
		TechStack:      lead.TechStack,
		EnrichmentData: lead.Enrichment,
		CampaignID:     lead.CampaignID,
		ScrapedAt:      lead.ScrapedAt,
		CreatedAt:      lead.CreatedAt,
		UpdatedAt:      lead.UpdatedAt,
	}
}
